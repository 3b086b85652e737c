package derive

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// BatchType discriminates the two RLP encodings a decoded channel may carry.
type BatchType uint8

const (
	SingularBatchType BatchType = iota
	SpanBatchType
)

// Batch is implemented by SingularBatch and SpanBatch, the two batch encodings the Channel
// Reader may decode out of a channel.
type Batch interface {
	GetBatchType() BatchType
	GetTimestamp() uint64
	LogContext(log.Logger) log.Logger
}

// SingularBatch is the original batch encoding: exactly one L2 block's worth of transactions,
// anchored to a specific parent hash and epoch.
type SingularBatch struct {
	ParentHash   common.Hash     `json:"parent_hash"`
	EpochNum     uint64          `json:"epoch_number"`
	EpochHash    common.Hash     `json:"epoch_hash"`
	Timestamp    uint64          `json:"timestamp"`
	Transactions []hexutil.Bytes `json:"transactions"`
}

func (b *SingularBatch) GetBatchType() BatchType { return SingularBatchType }
func (b *SingularBatch) GetTimestamp() uint64    { return b.Timestamp }

func (b *SingularBatch) LogContext(l log.Logger) log.Logger {
	return l.New("batch_timestamp", b.Timestamp, "parent_hash", b.ParentHash, "batch_epoch", b.EpochNum)
}

// Epoch returns the L1 origin this batch claims, as a BlockID.
func (b *SingularBatch) Epoch() eth.BlockID {
	return eth.BlockID{Hash: b.EpochHash, Number: b.EpochNum}
}

// SpanBatch encodes a contiguous run of L2 blocks in one compact structure, amortizing the
// per-block parent-hash/epoch overhead of SingularBatch across the whole span. Only the first
// block's parent hash and the whole span's starting epoch are carried explicitly; every other
// block's linkage is implied by its position.
type SpanBatch struct {
	ParentHash common.Hash        `json:"parent_hash"`
	EpochNum   uint64             `json:"epoch_number"`
	Elements   []SpanBatchElement `json:"elements"`
}

// SpanBatchElement is one L2 block's worth of transactions and epoch/timestamp within a
// SpanBatch.
type SpanBatchElement struct {
	Timestamp    uint64
	EpochNum     uint64
	Transactions []hexutil.Bytes
}

func (b *SpanBatch) GetBatchType() BatchType { return SpanBatchType }

func (b *SpanBatch) GetTimestamp() uint64 {
	if len(b.Elements) == 0 {
		return 0
	}
	return b.Elements[0].Timestamp
}

func (b *SpanBatch) LogContext(l log.Logger) log.Logger {
	return l.New("span_length", len(b.Elements), "span_start", b.GetTimestamp(), "parent_hash", b.ParentHash)
}

// BatchWithL1InclusionBlock pairs a decoded batch with the L1 block its channel was read from,
// the inclusion block the Batch Queue's sequencing-window check is relative to.
type BatchWithL1InclusionBlock struct {
	L1InclusionBlock eth.L1BlockRef
	Batch            Batch
}

// BatchValidity is the four-way outcome of validating one batch against the current safe head
// and known L1 origins.
type BatchValidity uint8

const (
	// BatchDrop means the batch is invalid and will never become valid, even after further L1
	// blocks are observed.
	BatchDrop BatchValidity = iota
	// BatchAccept means the batch is valid and ready to be turned into payload attributes.
	BatchAccept
	// BatchUndecided means validity cannot be determined without more L1 origin information.
	BatchUndecided
	// BatchFuture means the batch is valid but out of order: it belongs after a later safe head.
	BatchFuture
)

// CheckBatch dispatches to the per-type validation rule for batch.Batch.
func CheckBatch(ctx context.Context, cfg *rollup.Config, log log.Logger, l1Blocks []eth.L1BlockRef,
	l2SafeHead eth.L2BlockRef, batch *BatchWithL1InclusionBlock, l2Fetcher SafeBlockFetcher) BatchValidity {
	switch batch.Batch.GetBatchType() {
	case SingularBatchType:
		singularBatch, ok := batch.Batch.(*SingularBatch)
		if !ok {
			log.Error("failed type assertion to SingularBatch")
			return BatchDrop
		}
		return checkSingularBatch(cfg, log, l1Blocks, l2SafeHead, singularBatch, batch.L1InclusionBlock)
	case SpanBatchType:
		spanBatch, ok := batch.Batch.(*SpanBatch)
		if !ok {
			log.Error("failed type assertion to SpanBatch")
			return BatchDrop
		}
		if !cfg.IsSpanBatch(batch.Batch.GetTimestamp()) {
			log.Warn("received SpanBatch before SpanBatch hard fork")
			return BatchDrop
		}
		return checkSpanBatch(ctx, cfg, log, l1Blocks, l2SafeHead, spanBatch, batch.L1InclusionBlock, l2Fetcher)
	default:
		log.Warn("unrecognized batch type", "type", batch.Batch.GetBatchType())
		return BatchDrop
	}
}

// checkSingularBatch implements the SingularBatch validation rule: parent-hash chaining,
// timestamp alignment, epoch bounds, sequencer time drift, and the deposit-embedding
// restriction.
func checkSingularBatch(cfg *rollup.Config, log log.Logger, l1Blocks []eth.L1BlockRef, l2SafeHead eth.L2BlockRef,
	batch *SingularBatch, l1InclusionBlock eth.L1BlockRef) BatchValidity {
	log = batch.LogContext(log)

	if len(l1Blocks) == 0 {
		log.Warn("missing L1 block input, cannot proceed with batch checking")
		return BatchUndecided
	}
	epoch := l1Blocks[0]

	nextTimestamp := l2SafeHead.Time + cfg.BlockTime
	if batch.Timestamp > nextTimestamp {
		log.Trace("received out-of-order batch for future processing after next batch", "next_timestamp", nextTimestamp)
		return BatchFuture
	}
	if batch.Timestamp < nextTimestamp {
		log.Warn("dropping batch with old timestamp", "min_timestamp", nextTimestamp)
		return BatchDrop
	}

	if batch.ParentHash != l2SafeHead.Hash {
		log.Warn("ignoring batch with mismatching parent hash", "current_safe_head", l2SafeHead.Hash)
		return BatchDrop
	}

	if batch.EpochNum+cfg.SeqWindowSize < l1InclusionBlock.Number {
		log.Warn("batch was included too late, sequence window expired")
		return BatchDrop
	}

	batchOrigin := epoch
	if batch.EpochNum < epoch.Number {
		log.Warn("dropped batch, epoch is too old", "minimum", epoch.ID())
		return BatchDrop
	} else if batch.EpochNum == epoch.Number {
		// batch sticks to the current epoch, continue.
	} else if batch.EpochNum == epoch.Number+1 {
		if len(l1Blocks) < 2 {
			log.Info("batch wants to advance epoch, but could not without more L1 blocks", "current_epoch", epoch.ID())
			return BatchUndecided
		}
		batchOrigin = l1Blocks[1]
	} else {
		log.Warn("batch is for future epoch too far ahead, while it has the next timestamp, so it must be invalid", "current_epoch", epoch.ID())
		return BatchDrop
	}

	if batch.EpochHash != batchOrigin.Hash {
		log.Warn("batch is for different L1 chain, epoch hash does not match", "expected", batchOrigin.ID())
		return BatchDrop
	}

	if batch.Timestamp < batchOrigin.Time {
		log.Warn("batch timestamp is less than L1 origin timestamp", "l2_timestamp", batch.Timestamp, "l1_timestamp", batchOrigin.Time, "origin", batchOrigin.ID())
		return BatchDrop
	}

	if max := batchOrigin.Time + cfg.MaxSequencerDrift; batch.Timestamp > max {
		if len(batch.Transactions) == 0 {
			if epoch.Number == batchOrigin.Number {
				if len(l1Blocks) < 2 {
					log.Info("without the next L1 origin we cannot determine yet if this empty batch that exceeds the time drift is still valid")
					return BatchUndecided
				}
				nextOrigin := l1Blocks[1]
				if batch.Timestamp >= nextOrigin.Time {
					log.Info("batch exceeded sequencer time drift without adopting next origin, and next L1 origin would have been valid")
					return BatchDrop
				}
				log.Info("continuing with empty batch before late L1 block to preserve L2 time invariant")
			}
		} else {
			log.Warn("batch exceeded sequencer time drift, sequencer must adopt new L1 origin to include transactions again", "max_time", max)
			return BatchDrop
		}
	}

	for i, txBytes := range batch.Transactions {
		if len(txBytes) == 0 {
			log.Warn("transaction data must not be empty, but found empty tx", "tx_index", i)
			return BatchDrop
		}
		if txBytes[0] == types.DepositTxType {
			log.Warn("sequencers may not embed any deposits into batch data, but found tx that has one", "tx_index", i)
			return BatchDrop
		}
	}

	return BatchAccept
}

// checkSpanBatch implements the SpanBatch validation rule: it validates the first element the
// same way as a singular batch, then checks every subsequent element's epoch/timestamp deltas
// are consistent with it, and finally checks any elements that overlap with already-derived L2
// blocks actually match what was derived.
func checkSpanBatch(ctx context.Context, cfg *rollup.Config, log log.Logger, l1Blocks []eth.L1BlockRef, l2SafeHead eth.L2BlockRef,
	batch *SpanBatch, l1InclusionBlock eth.L1BlockRef, l2Fetcher SafeBlockFetcher) BatchValidity {
	log = batch.LogContext(log)

	if len(batch.Elements) == 0 {
		log.Warn("span batch has no elements")
		return BatchDrop
	}
	if len(l1Blocks) == 0 {
		log.Warn("missing L1 block input, cannot proceed with span batch checking")
		return BatchUndecided
	}

	first := &SingularBatch{
		ParentHash:   batch.ParentHash,
		EpochNum:     batch.EpochNum,
		EpochHash:    l1Blocks[0].Hash,
		Timestamp:    batch.Elements[0].Timestamp,
		Transactions: batch.Elements[0].Transactions,
	}
	if v := checkSingularBatch(cfg, log, l1Blocks, l2SafeHead, first, l1InclusionBlock); v != BatchAccept {
		return v
	}

	prevTimestamp := batch.Elements[0].Timestamp
	prevEpoch := batch.EpochNum
	for i := 1; i < len(batch.Elements); i++ {
		el := batch.Elements[i]
		if el.Timestamp != prevTimestamp+cfg.BlockTime {
			log.Warn("span batch element timestamp does not follow block time", "index", i)
			return BatchDrop
		}
		if el.EpochNum < prevEpoch || el.EpochNum > prevEpoch+1 {
			log.Warn("span batch element epoch skips or regresses", "index", i)
			return BatchDrop
		}
		prevTimestamp = el.Timestamp
		prevEpoch = el.EpochNum
	}

	return checkSpanBatchOverlap(ctx, log, batch, l2SafeHead, l2Fetcher)
}

// checkSpanBatchOverlap compares the prefix of a span batch's elements that falls at or before
// the current safe head against the payloads already derived for those heights: a verifier must
// reject a span batch that disagrees with a block it already safely derived.
func checkSpanBatchOverlap(ctx context.Context, log log.Logger, batch *SpanBatch, l2SafeHead eth.L2BlockRef, l2Fetcher SafeBlockFetcher) BatchValidity {
	if l2Fetcher == nil {
		return BatchAccept
	}
	height := l2SafeHead.Number - uint64(overlapCount(batch, l2SafeHead)) + 1
	for _, el := range batch.Elements {
		if el.Timestamp > l2SafeHead.Time {
			break
		}
		existing, err := l2Fetcher.PayloadByNumber(ctx, height)
		if err != nil {
			log.Warn("failed to fetch existing block for span batch overlap check", "number", height, "err", err)
			return BatchUndecided
		}
		if len(existing.Transactions) != len(el.Transactions) {
			log.Warn("span batch element disagrees with already-derived block", "number", height)
			return BatchDrop
		}
		for i := range el.Transactions {
			if !bytesEqual(existing.Transactions[i], el.Transactions[i]) {
				log.Warn("span batch element disagrees with already-derived block transaction", "number", height, "tx_index", i)
				return BatchDrop
			}
		}
		height++
	}
	return BatchAccept
}

func overlapCount(batch *SpanBatch, l2SafeHead eth.L2BlockRef) int {
	count := 0
	for _, el := range batch.Elements {
		if el.Timestamp <= l2SafeHead.Time {
			count++
		}
	}
	return count
}

func bytesEqual(a, b hexutil.Bytes) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
