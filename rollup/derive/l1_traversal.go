package derive

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// L1Traversal implements the L1 Traversal stage: it walks the canonical L1 chain one block at a
// time from the current origin, verifying the parent-hash chain as it goes, and also tracks the
// SystemConfig so that later stages see an up-to-date batcher address and gas limit.
type L1Traversal struct {
	log      log.Logger
	cfg      *rollup.Config
	l1Blocks ChainProvider

	block  eth.L1BlockRef
	sysCfg eth.SystemConfig
}

func NewL1Traversal(log log.Logger, cfg *rollup.Config, l1Blocks ChainProvider, sysCfg eth.SystemConfig, start eth.L1BlockRef) *L1Traversal {
	return &L1Traversal{log: log, cfg: cfg, l1Blocks: l1Blocks, block: start, sysCfg: sysCfg}
}

func (l1t *L1Traversal) Origin() eth.L1BlockRef {
	return l1t.block
}

func (l1t *L1Traversal) SystemConfig() eth.SystemConfig {
	return l1t.sysCfg
}

// Advance fetches the next L1 block after the current origin, verifies that it actually
// extends it, applies any SystemConfig-updating receipts found in it, and adopts it as the new
// origin. It returns a temporary error if the next block cannot be fetched, which includes the
// case where the L1 chain has not advanced yet, a reset-level error if a reorg is detected, and a
// critical error if a SystemConfig update in the new block cannot be decoded.
func (l1t *L1Traversal) Advance(ctx context.Context) error {
	next, err := l1t.l1Blocks.L1BlockRefByNumber(ctx, l1t.block.Number+1)
	if err != nil {
		return NewTemporaryError(fmt.Errorf("failed to find next L1 block after %s: %w", l1t.block, err))
	}
	if next.ParentHash != l1t.block.Hash {
		return NewReorgError(l1t.block.Hash, next.ParentHash)
	}

	_, receipts, err := l1t.l1Blocks.FetchReceipts(ctx, next.Hash)
	if err != nil {
		return NewTemporaryError(fmt.Errorf("failed to fetch receipts of %s: %w", next, err))
	}
	updated, err := UpdateSystemConfig(l1t.sysCfg, l1t.cfg, next, receipts)
	if err != nil {
		return NewCriticalError(fmt.Errorf("failed to apply SystemConfig update at %s: %w", next, err))
	}
	l1t.sysCfg = updated

	l1t.block = next
	return nil
}

// Reset re-anchors the stage at the given L1 block and SystemConfig, used by the pipeline-wide
// Reset protocol after a reorg or on startup.
func (l1t *L1Traversal) Reset(origin eth.L1BlockRef, sysCfg eth.SystemConfig) {
	l1t.block = origin
	l1t.sysCfg = sysCfg
}
