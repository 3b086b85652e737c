package eth

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PayloadAttributes are the inputs the Attributes Queue hands to the execution engine to build
// (or verify) one L2 block. Transactions is always non-nil once the L1-attributes deposit
// transaction has been prepended by the Attributes Queue, even for an empty batch.
type PayloadAttributes struct {
	Timestamp             Uint64Quantity  `json:"timestamp"`
	PrevRandao            common.Hash     `json:"prevRandao"`
	SuggestedFeeRecipient common.Address  `json:"suggestedFeeRecipient"`
	Transactions          []hexutil.Bytes `json:"transactions,omitempty"`
	// NoTxPool instructs the engine to build strictly from Transactions, never reaching into its
	// own mempool. The derivation pipeline always sets this to true: every transaction it
	// produces must come from L1 data, never from a locally observed mempool.
	NoTxPool bool `json:"noTxPool,omitempty"`
	// GasLimit is carried on every payload attributes the pipeline builds: unlike the sequencer's
	// own attribute building, the gas limit here always comes from SystemConfig rather than being
	// left for the engine to default.
	GasLimit *Uint64Quantity `json:"gasLimit,omitempty"`
	// ParentBeaconBlockRoot is non-nil once the Ecotone/Cancun engine API requires it.
	ParentBeaconBlockRoot *common.Hash `json:"parentBeaconBlockRoot,omitempty"`
}

// ExecutionPayloadEnvelope wraps a previously-derived L2 block as returned by a SafeBlockFetcher,
// enough for span-batch overlap validation to compare against.
type ExecutionPayloadEnvelope struct {
	BlockHash    common.Hash     `json:"blockHash"`
	Transactions []hexutil.Bytes `json:"transactions"`
}
