package derive

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// Pipeline wires the seven derivation stages into the single pull chain the driver polls:
// L1 Traversal -> L1 Retrieval -> Frame Queue -> Channel Bank -> Channel Reader -> Batch Queue
// -> Attributes Queue. Step is the only operation the driver calls in steady state; Reset
// re-anchors every stage after a reorg or on startup.
type Pipeline struct {
	log log.Logger
	cfg *rollup.Config

	l1Traversal *L1Traversal
	l1Retrieval *L1Retrieval
	frameQueue  *FrameQueue
	channelBank *ChannelBank
	chReader    *ChannelReader
	batchQueue  *BatchQueue
	attrQueue   *AttributesQueue

	l2SafeHead eth.L2BlockRef
}

// PipelineInputs bundles everything Pipeline needs from the host to construct its stages.
type PipelineInputs struct {
	Log               log.Logger
	RollupCfg         *rollup.Config
	L1Blocks          ChainProvider
	Blobs             BlobProvider
	SafeBlockFetcher  SafeBlockFetcher
	AttributesBuilder AttributesBuilder
	Metrics           Metricer
}

// NewPipeline constructs a Pipeline and immediately Resets it to start, the genesis-anchored
// starting point every pipeline has before it has derived anything.
func NewPipeline(in PipelineInputs, start eth.L1BlockRef, l2SafeHead eth.L2BlockRef, sysCfg eth.SystemConfig) *Pipeline {
	metrics := in.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	p := &Pipeline{log: in.Log, cfg: in.RollupCfg}

	p.l1Traversal = NewL1Traversal(in.Log, in.RollupCfg, in.L1Blocks, sysCfg, start)
	p.l1Retrieval = NewL1Retrieval(in.Log, in.RollupCfg, in.L1Blocks, in.Blobs, p.l1Traversal)
	p.frameQueue = NewFrameQueue(in.Log, p.l1Retrieval)
	p.channelBank = NewChannelBank(in.Log, in.RollupCfg, p.frameQueue, metrics)
	p.chReader = NewChannelReader(in.Log, p.channelBank)
	p.batchQueue = NewBatchQueue(in.Log, in.RollupCfg, p.chReader, in.SafeBlockFetcher, metrics)
	p.attrQueue = NewAttributesQueue(in.Log, in.RollupCfg, in.AttributesBuilder, p.batchQueue)

	p.batchQueue.Reset(l2SafeHead, start)
	p.l2SafeHead = l2SafeHead
	return p
}

// Origin returns the L1 block the pipeline is currently anchored at.
func (p *Pipeline) Origin() eth.L1BlockRef {
	return p.l1Traversal.Origin()
}

// Step advances the pipeline by exactly one unit of work, returning the PayloadAttributes for
// the next L2 block if one became available, Eof if the Batch Queue has nothing more to offer
// from the data read so far, NotEnoughData if it made progress but isn't ready yet, a temporary
// error if an L1 fetch failed (including when there is no next L1 block yet), or a Reset-level
// error if a reorg was detected and the caller must call Reset before continuing.
func (p *Pipeline) Step(ctx context.Context) (*eth.PayloadAttributes, error) {
	attrs, err := p.attrQueue.NextAttributes(ctx, p.l2SafeHead)
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// AdvanceSafeHead records that the attributes most recently returned by Step were built into an
// L2 block and accepted as the new safe head, so subsequent batches validate against it.
func (p *Pipeline) AdvanceSafeHead(newSafeHead eth.L2BlockRef) {
	p.l2SafeHead = newSafeHead
	p.batchQueue.AdvanceSafeHead(newSafeHead)
}

// Reset re-anchors every stage at the given L1 origin, L2 safe head, and SystemConfig. This is
// the only path that recovers the pipeline from a reorg: every stage's buffered state is
// discarded, since it was validated against an L1 view that is no longer canonical. The stages
// are walked front-to-back, in the order data flows through them (the reverse of the order Step
// calls them in), so that a stage's Reset never
// runs before the stage feeding it has already cleared the data it would otherwise hand down.
func (p *Pipeline) Reset(origin eth.L1BlockRef, l2SafeHead eth.L2BlockRef, sysCfg eth.SystemConfig) error {
	p.log.Info("resetting derivation pipeline", "origin", origin, "l2_safe_head", l2SafeHead)
	p.l1Traversal.Reset(origin, sysCfg)
	p.l1Retrieval.Reset()
	p.frameQueue.Reset()
	p.channelBank.Reset()
	p.chReader.Reset()
	p.batchQueue.Reset(l2SafeHead, origin)
	p.attrQueue.Reset()
	p.l2SafeHead = l2SafeHead
	return nil
}
