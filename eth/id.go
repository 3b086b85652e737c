package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BlockID is a reference to a block by hash and number.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash, id.Number)
}

// TerminalString implements log.TerminalStringer, formatting the block ID with the
// shorter abbreviated hash log.Logger writers use.
func (id BlockID) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

// BlockInfo is an interface over the minimal set of fields the derivation pipeline reads off
// an L1 or L2 header, so a full *types.Block or *types.Header can be passed in without copying.
type BlockInfo interface {
	Hash() common.Hash
	ParentHash() common.Hash
	NumberU64() uint64
	Time() uint64
}

// ToBlockID reduces any BlockInfo to its identifying hash and number.
func ToBlockID(b BlockInfo) BlockID {
	return BlockID{Hash: b.Hash(), Number: b.NumberU64()}
}
