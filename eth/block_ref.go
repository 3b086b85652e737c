package eth

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// L1BlockRef is a compact reference to an L1 block, carrying just the fields the derivation
// pipeline needs to validate batches and walk the chain: its own identity, its parent, and
// when it was produced.
type L1BlockRef struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
}

func (id L1BlockRef) ID() BlockID {
	return BlockID{Hash: id.Hash, Number: id.Number}
}

func (id L1BlockRef) ParentID() BlockID {
	if id.Number == 0 {
		return BlockID{Hash: id.ParentHash, Number: 0}
	}
	return BlockID{Hash: id.ParentHash, Number: id.Number - 1}
}

func (id L1BlockRef) String() string {
	return fmt.Sprintf("%s:%d", id.Hash, id.Number)
}

func (id L1BlockRef) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

// L1BlockRefByNumberFetcher looks up canonical L1 blocks by number, used whenever a stage
// needs to confirm an epoch boundary that isn't already buffered.
type L1BlockRefByNumberFetcher interface {
	L1BlockRefByNumber(ctx context.Context, num uint64) (L1BlockRef, error)
}

// L2BlockRef is the L2 analogue of L1BlockRef, additionally tracking the L1 origin the block
// was derived from and its position within that origin's sequencing window.
type L2BlockRef struct {
	Hash           common.Hash `json:"hash"`
	Number         uint64      `json:"number"`
	ParentHash     common.Hash `json:"parentHash"`
	Time           uint64      `json:"timestamp"`
	L1Origin       BlockID     `json:"l1origin"`
	SequenceNumber uint64      `json:"sequenceNumber"`
}

func (id L2BlockRef) ID() BlockID {
	return BlockID{Hash: id.Hash, Number: id.Number}
}

func (id L2BlockRef) String() string {
	return fmt.Sprintf("%s:%d", id.Hash, id.Number)
}

func (id L2BlockRef) TerminalString() string {
	return fmt.Sprintf("%s:%d, t=%d, l1_origin: %s", id.Hash.TerminalString(), id.Number, id.Time, id.L1Origin)
}

// InfoToL1BlockRef reduces any BlockInfo to the compact L1BlockRef the derivation pipeline
// threads between stages.
func InfoToL1BlockRef(info BlockInfo) L1BlockRef {
	return L1BlockRef{
		Hash:       info.Hash(),
		Number:     info.NumberU64(),
		ParentHash: info.ParentHash(),
		Time:       info.Time(),
	}
}

// HeaderBlockInfo adapts a go-ethereum header to the BlockInfo interface.
type HeaderBlockInfo struct {
	hash       common.Hash
	parentHash common.Hash
	number     uint64
	time       uint64
}

func NewHeaderBlockInfo(hash, parentHash common.Hash, number, time uint64) HeaderBlockInfo {
	return HeaderBlockInfo{hash: hash, parentHash: parentHash, number: number, time: time}
}

func (h HeaderBlockInfo) Hash() common.Hash       { return h.hash }
func (h HeaderBlockInfo) ParentHash() common.Hash { return h.parentHash }
func (h HeaderBlockInfo) NumberU64() uint64       { return h.number }
func (h HeaderBlockInfo) Time() uint64            { return h.time }
