package derive

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// NextSingularBatchProvider abstracts the Batch Queue for the Attributes Queue.
type NextSingularBatchProvider interface {
	NextBatch(ctx context.Context) (*SingularBatch, error)
	Origin() eth.L1BlockRef
}

// AttributesQueue implements the Attributes Queue stage, the last stage of the pipeline: it
// turns the next accepted SingularBatch into PayloadAttributes by asking the AttributesBuilder
// to prepare the L1 attributes deposit transaction and prepending it to the batch's own
// transactions.
type AttributesQueue struct {
	log     log.Logger
	cfg     *rollup.Config
	prev    NextSingularBatchProvider
	builder AttributesBuilder

	batch *SingularBatch
}

func NewAttributesQueue(log log.Logger, cfg *rollup.Config, builder AttributesBuilder, prev NextSingularBatchProvider) *AttributesQueue {
	return &AttributesQueue{log: log, cfg: cfg, prev: prev, builder: builder}
}

func (aq *AttributesQueue) Origin() eth.L1BlockRef {
	return aq.prev.Origin()
}

// Reset discards a buffered-but-not-yet-built batch: it was validated against a safe head and
// L1 origin window the pipeline-wide Reset is about to replace, so building it now would attach
// attributes to a chain this pipeline no longer derives from.
func (aq *AttributesQueue) Reset() {
	aq.batch = nil
}

// NextAttributes returns the PayloadAttributes to build the next L2 block on top of l2SafeHead,
// pulling a fresh batch from the Batch Queue if none is already buffered.
func (aq *AttributesQueue) NextAttributes(ctx context.Context, l2SafeHead eth.L2BlockRef) (*eth.PayloadAttributes, error) {
	if aq.batch == nil {
		batch, err := aq.prev.NextBatch(ctx)
		if err != nil {
			return nil, err
		}
		aq.batch = batch
	}

	attrs, err := aq.createAttributes(ctx, l2SafeHead, aq.batch)
	if err != nil {
		return nil, NewTemporaryError(fmt.Errorf("failed to build payload attributes from batch: %w", err))
	}
	aq.batch = nil
	return attrs, nil
}

func (aq *AttributesQueue) createAttributes(ctx context.Context, l2SafeHead eth.L2BlockRef, batch *SingularBatch) (*eth.PayloadAttributes, error) {
	epoch := eth.BlockID{Hash: batch.EpochHash, Number: batch.EpochNum}
	attrs, err := aq.builder.PreparePayloadAttributes(ctx, l2SafeHead, epoch)
	if err != nil {
		return nil, err
	}
	attrs.Timestamp = eth.Uint64Quantity(batch.Timestamp)
	attrs.Transactions = append(attrs.Transactions, batch.Transactions...)
	attrs.NoTxPool = true
	return attrs, nil
}
