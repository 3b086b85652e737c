package derive

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// NextRawBatchProvider abstracts the Channel Reader for the Batch Queue: one decoded Batch at a
// time.
type NextRawBatchProvider interface {
	NextBatch(ctx context.Context) (Batch, error)
	Origin() eth.L1BlockRef
}

// BatchQueue implements the Batch Queue stage: it buffers batches by their claimed epoch,
// validates each against the current safe head and the L1 origins observed so far, and once a
// batch is accepted (or a sequencing window expires with nothing usable) emits exactly the
// SingularBatch the Attributes Queue should build into the next L2 block. When a batch's window
// expires with no accepted batch, the queue synthesizes an empty batch so the L2 chain never
// stalls behind an unresponsive or censoring batcher.
type BatchQueue struct {
	log     log.Logger
	cfg     *rollup.Config
	prev    NextRawBatchProvider
	fetcher SafeBlockFetcher
	metrics Metricer

	l1Blocks []eth.L1BlockRef
	batches  []*BatchWithL1InclusionBlock

	// pending holds the still-undelivered SingularBatch elements of an accepted SpanBatch, in
	// order: a span is accepted as one multi-block unit but must be drained one L2 block at a
	// time, the same way a SingularBatch already arrives as exactly one.
	pending []*SingularBatch

	l2SafeHead eth.L2BlockRef
}

func NewBatchQueue(log log.Logger, cfg *rollup.Config, prev NextRawBatchProvider, fetcher SafeBlockFetcher, m Metricer) *BatchQueue {
	return &BatchQueue{log: log, cfg: cfg, prev: prev, fetcher: fetcher, metrics: m}
}

func (bq *BatchQueue) Origin() eth.L1BlockRef {
	return bq.prev.Origin()
}

// Reset re-anchors the queue at a new safe head, discarding every buffered batch and L1 block:
// they were all validated against state that the pipeline no longer trusts.
func (bq *BatchQueue) Reset(l2SafeHead eth.L2BlockRef, l1Origin eth.L1BlockRef) {
	bq.l2SafeHead = l2SafeHead
	bq.l1Blocks = []eth.L1BlockRef{l1Origin}
	bq.batches = nil
	bq.pending = nil
}

// addOrigin appends a freshly observed L1 origin to the window the queue evaluates batches
// against, once it has advanced past the last one it already knows about.
func (bq *BatchQueue) addOrigin(origin eth.L1BlockRef) error {
	if len(bq.l1Blocks) == 0 {
		bq.l1Blocks = append(bq.l1Blocks, origin)
		return nil
	}
	last := bq.l1Blocks[len(bq.l1Blocks)-1]
	if origin.Number == last.Number {
		return nil
	}
	if origin.ParentHash != last.Hash {
		return NewReorgError(last.Hash, origin.ParentHash)
	}
	bq.l1Blocks = append(bq.l1Blocks, origin)
	return nil
}

// NextBatch returns the next SingularBatch to build, pulling and buffering new decoded batches
// from the Channel Reader as needed, and synthesizing an empty batch if the sequencing window
// for the next L2 block height has expired with nothing usable buffered.
func (bq *BatchQueue) NextBatch(ctx context.Context) (*SingularBatch, error) {
	if len(bq.pending) > 0 {
		b := bq.pending[0]
		bq.pending = bq.pending[1:]
		return b, nil
	}

	if err := bq.addOrigin(bq.prev.Origin()); err != nil {
		return nil, err
	}

	for {
		if batch, ok, err := bq.tryDeriveFromBuffer(ctx); ok {
			return batch, err
		}

		raw, err := bq.prev.NextBatch(ctx)
		if err == Eof || err == io.EOF {
			// No more batches available right now; check whether time has run out for the
			// current epoch before reporting Eof upward.
			if batch, ok := bq.tryExpireEpoch(); ok {
				return batch, nil
			}
			return nil, Eof
		}
		if err != nil {
			return nil, err
		}
		bq.batches = append(bq.batches, &BatchWithL1InclusionBlock{
			L1InclusionBlock: bq.prev.Origin(),
			Batch:            raw,
		})
	}
}

// tryDeriveFromBuffer scans the buffered batches for the first one that resolves to an
// accept/drop decision and returns it; an undecided batch blocks further progress until more L1
// origin information arrives, matching the eager-derivation rule the specification requires.
func (bq *BatchQueue) tryDeriveFromBuffer(ctx context.Context) (*SingularBatch, bool, error) {
	for i := 0; i < len(bq.batches); i++ {
		entry := bq.batches[i]
		validity := CheckBatch(ctx, bq.cfg, bq.log, bq.l1Blocks, bq.l2SafeHead, entry, bq.fetcher)
		switch validity {
		case BatchDrop:
			bq.metrics.RecordBatchDropped("invalid")
			bq.batches = append(bq.batches[:i], bq.batches[i+1:]...)
			i--
			continue
		case BatchAccept:
			bq.batches = append(bq.batches[:i], bq.batches[i+1:]...)
			bq.metrics.RecordBatchAccepted()
			singulars := expandBatch(entry.Batch, bq.l1Blocks)
			if len(singulars) == 0 {
				return nil, true, nil
			}
			bq.pending = append(bq.pending, singulars[1:]...)
			return singulars[0], true, nil
		case BatchFuture:
			continue
		case BatchUndecided:
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// tryExpireEpoch synthesizes an empty batch for the next L2 block height once the sequencing
// window for its epoch has expired without a usable batch arriving, so the safe chain keeps
// advancing even when the batcher censors or goes offline.
func (bq *BatchQueue) tryExpireEpoch() (*SingularBatch, bool) {
	if len(bq.l1Blocks) == 0 {
		return nil, false
	}
	epoch := bq.l1Blocks[0]
	nextTimestamp := bq.l2SafeHead.Time + bq.cfg.BlockTime

	origin := bq.prev.Origin()
	if origin.Number < epoch.Number+bq.cfg.SeqWindowSize {
		return nil, false
	}

	return &SingularBatch{
		ParentHash:   bq.l2SafeHead.Hash,
		EpochNum:     epoch.Number,
		EpochHash:    epoch.Hash,
		Timestamp:    nextTimestamp,
		Transactions: nil,
	}, true
}

// AdvanceSafeHead records a newly built L2 block as the safe head, so the next NextBatch call
// validates against it instead of the block it replaced. It does not touch the buffered L1
// origin window.
func (bq *BatchQueue) AdvanceSafeHead(newSafeHead eth.L2BlockRef) {
	bq.l2SafeHead = newSafeHead
}

// expandBatch turns an accepted Batch into the ordered SingularBatch entries it represents. A
// SingularBatch is already exactly one entry; an accepted SpanBatch is exploded into one entry
// per element, so NextBatch hands the Attributes Queue one L2 block at a time instead of
// collapsing the whole span down to its first block and discarding the rest.
func expandBatch(b Batch, l1Blocks []eth.L1BlockRef) []*SingularBatch {
	switch v := b.(type) {
	case *SingularBatch:
		return []*SingularBatch{v}
	case *SpanBatch:
		out := make([]*SingularBatch, 0, len(v.Elements))
		for _, el := range v.Elements {
			out = append(out, &SingularBatch{
				ParentHash:   v.ParentHash,
				EpochNum:     el.EpochNum,
				EpochHash:    epochHashForNum(el.EpochNum, l1Blocks),
				Timestamp:    el.Timestamp,
				Transactions: el.Transactions,
			})
		}
		return out
	default:
		return nil
	}
}

// epochHashForNum resolves a span element's epoch number to the L1 block hash it refers to,
// using the same buffered L1 origin window checkSpanBatch validated the span against: element
// i's epoch number is always within that window once the span as a whole has been accepted.
func epochHashForNum(epochNum uint64, l1Blocks []eth.L1BlockRef) common.Hash {
	if len(l1Blocks) == 0 || epochNum < l1Blocks[0].Number {
		return common.Hash{}
	}
	idx := epochNum - l1Blocks[0].Number
	if idx >= uint64(len(l1Blocks)) {
		return common.Hash{}
	}
	return l1Blocks[idx].Hash
}
