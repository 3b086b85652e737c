// Package rollup holds the chain-wide configuration parameters the derivation pipeline needs:
// genesis anchors, block timing, and the activation times of hard forks that change wire
// formats mid-chain (span batches, Ecotone's L1-attributes encoding).
package rollup

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/opstack-go/derive-pipeline/eth"
)

// Config is the immutable, chain-wide configuration threaded through every stage of the
// derivation pipeline. It is read-only after construction; stages never mutate it.
type Config struct {
	// Genesis anchors the pipeline when it has no better L1/L2 correspondence to reset to.
	Genesis eth.Genesis `json:"genesis"`

	// BlockTime is the fixed L2 block interval in seconds. Every accepted batch's timestamp must
	// land exactly on a BlockTime boundary relative to genesis.
	BlockTime uint64 `json:"block_time"`

	// MaxSequencerDrift bounds how far an L2 block's timestamp may run ahead of its L1 origin's
	// timestamp before the batch must be empty.
	MaxSequencerDrift uint64 `json:"max_sequencer_drift"`

	// SeqWindowSize is the sequencing window: the maximum number of L1 blocks a batch may be
	// included after its epoch before it is dropped as too late.
	SeqWindowSize uint64 `json:"seq_window_size"`

	// ChannelTimeout is the number of L1 blocks a channel may remain open in the channel bank
	// before being pruned.
	ChannelTimeout uint64 `json:"channel_timeout"`

	// L2ChainID identifies the L2 chain; carried through for completeness of SystemConfig/batch
	// validation call sites that accept a chain ID even though this pipeline does not fork on it.
	L2ChainID *big.Int `json:"l2_chain_id"`

	// L1ChainID identifies the L1 chain, used to recover batcher transaction senders.
	L1ChainID *big.Int `json:"l1_chain_id"`

	// BatchInboxAddress is the L1 address batcher transactions must be sent to. L1 Retrieval
	// uses it as the primary filter before checking the sender against SystemConfig.BatcherAddr.
	BatchInboxAddress common.Address `json:"batch_inbox_address"`

	// SpanBatchTime activates span-batch decoding at or after this L2 timestamp. Prior to this
	// time, a SpanBatch frame is a protocol violation and must be dropped.
	SpanBatchTime *uint64 `json:"span_batch_time,omitempty"`

	// EcotoneTime activates the Ecotone L1-attributes binary format and blob-carrying batcher
	// transactions at or after this L2 timestamp.
	EcotoneTime *uint64 `json:"ecotone_time,omitempty"`

	// RegolithTime activates deposit-transaction gas accounting changes (system transactions
	// stop being free) at or after this L2 timestamp.
	RegolithTime *uint64 `json:"regolith_time,omitempty"`
}

func activatedAt(t *uint64, timestamp uint64) bool {
	return t != nil && timestamp >= *t
}

func (c *Config) IsSpanBatch(timestamp uint64) bool {
	return activatedAt(c.SpanBatchTime, timestamp)
}

func (c *Config) IsEcotone(timestamp uint64) bool {
	return activatedAt(c.EcotoneTime, timestamp)
}

// IsEcotoneActivationBlock returns true if the block at timestamp is the very first block
// subject to the Ecotone fork: the block whose parent predates activation. Such a block is
// exempt from the Ecotone L1-attributes format, since the upgrade transactions that deploy the
// new contracts have not landed until the end of this block's execution.
func (c *Config) IsEcotoneActivationBlock(timestamp uint64) bool {
	return c.IsEcotone(timestamp) && !c.IsEcotone(timestamp-c.BlockTime)
}

func (c *Config) IsRegolith(timestamp uint64) bool {
	return activatedAt(c.RegolithTime, timestamp)
}
