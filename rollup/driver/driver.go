// Package driver runs the derivation pipeline as an event loop: it watches the L1 head advance,
// steps the pipeline forward, and hands each resulting PayloadAttributes to an execution engine.
// It never builds blocks itself; this is a verifier, not a sequencer.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
	"github.com/opstack-go/derive-pipeline/rollup/derive"
)

// ExecutionEngine is the host's execution-layer collaborator: it turns PayloadAttributes into
// an actual L2 block and reports back the block reference so the pipeline can advance its safe
// head.
type ExecutionEngine interface {
	NewPayload(ctx context.Context, attrs *eth.PayloadAttributes, parent eth.L2BlockRef) (eth.L2BlockRef, error)
}

// DerivationPipeline is the subset of derive.Pipeline the driver depends on, kept as an
// interface so tests can substitute a scripted fake.
type DerivationPipeline interface {
	Origin() eth.L1BlockRef
	Step(ctx context.Context) (*eth.PayloadAttributes, error)
	AdvanceSafeHead(newSafeHead eth.L2BlockRef)
	Reset(origin eth.L1BlockRef, l2SafeHead eth.L2BlockRef, sysCfg eth.SystemConfig) error
}

// resetBackoff is how long the driver waits before retrying a failed Reset, since a Reset
// failure almost always means the ChainProvider is temporarily unavailable.
const resetBackoff = 1 * time.Second

// Driver runs one L2 chain's verification loop: on every L1 head signal it steps the
// derivation pipeline until no more progress can be made without a new L1 block, submitting
// each derived block to the engine and advancing the pipeline's safe head as it goes.
type Driver struct {
	log    log.Logger
	cfg    *rollup.Config
	engine ExecutionEngine

	derivation DerivationPipeline

	l1HeadSig chan eth.L1BlockRef

	l2SafeHead   eth.L2BlockRef
	l2SafeHeadMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

func NewDriver(log log.Logger, cfg *rollup.Config, engine ExecutionEngine, derivation DerivationPipeline, l2SafeHead eth.L2BlockRef) *Driver {
	return &Driver{
		log:        log,
		cfg:        cfg,
		engine:     engine,
		derivation: derivation,
		l1HeadSig:  make(chan eth.L1BlockRef, 10),
		l2SafeHead: l2SafeHead,
		done:       make(chan struct{}),
	}
}

// Start launches the event loop goroutine.
func (d *Driver) Start() {
	d.wg.Add(1)
	go d.eventLoop()
}

// Close stops the event loop and waits for it to exit.
func (d *Driver) Close() {
	close(d.done)
	d.wg.Wait()
}

// OnL1Head notifies the driver that a new L1 head has been observed, waking the event loop if
// it was idle waiting for one.
func (d *Driver) OnL1Head(ctx context.Context, head eth.L1BlockRef) {
	select {
	case d.l1HeadSig <- head:
	case <-ctx.Done():
	case <-d.done:
	}
}

// SafeL2Head returns the most recently confirmed safe L2 block.
func (d *Driver) SafeL2Head() eth.L2BlockRef {
	d.l2SafeHeadMu.RLock()
	defer d.l2SafeHeadMu.RUnlock()
	return d.l2SafeHead
}

func (d *Driver) eventLoop() {
	defer d.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-d.l1HeadSig:
			d.drain(ctx)
		case <-d.done:
			return
		}
	}
}

// drain steps the pipeline as far as it will go given what it currently knows about L1,
// inserting every derived block into the engine, until Step reports Eof (caught up) or a
// reset-level error (a reorg was detected and must be handled before continuing).
func (d *Driver) drain(ctx context.Context) {
	for {
		select {
		case <-d.done:
			return
		default:
		}

		attrs, err := d.derivation.Step(ctx)
		if err == nil {
			d.insert(ctx, attrs)
			continue
		}
		if err == derive.Eof {
			return
		}
		if derive.IsTemporary(err) || err == derive.NotEnoughData {
			continue
		}
		if derive.IsReset(err) {
			d.log.Warn("derivation pipeline needs reset", "err", err)
			d.handleReset(ctx)
			return
		}
		d.log.Error("derivation pipeline step failed with unrecoverable error", "err", err)
		return
	}
}

func (d *Driver) insert(ctx context.Context, attrs *eth.PayloadAttributes) {
	parent := d.SafeL2Head()
	block, err := d.engine.NewPayload(ctx, attrs, parent)
	if err != nil {
		d.log.Error("failed to insert derived payload into engine", "err", err)
		return
	}
	d.l2SafeHeadMu.Lock()
	d.l2SafeHead = block
	d.l2SafeHeadMu.Unlock()
	d.derivation.AdvanceSafeHead(block)
}

// handleReset retries the pipeline-wide Reset protocol, backing off between attempts, until the
// pipeline accepts a fresh anchor or the driver is closed.
func (d *Driver) handleReset(ctx context.Context) {
	safeHead := d.SafeL2Head()
	for {
		origin := d.derivation.Origin()
		if err := d.derivation.Reset(origin, safeHead, eth.SystemConfig{}); err != nil {
			d.log.Error("failed to reset derivation pipeline, retrying", "err", err)
			select {
			case <-time.After(resetBackoff):
				continue
			case <-d.done:
				return
			}
		}
		return
	}
}
