package derive

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
	"github.com/opstack-go/derive-pipeline/rollup/derive/derivetest"
)

func TestPipelineStepIsTemporaryAtChainTip(t *testing.T) {
	l1 := derivetest.NewL1()
	genesis := eth.L1BlockRef{Hash: common.Hash{1}, Number: 0}
	l1.AddBlock(genesis, nil, nil)

	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 100, ChannelTimeout: 50}
	in := PipelineInputs{
		Log:               testLogger(),
		RollupCfg:         cfg,
		L1Blocks:          l1,
		Blobs:             derivetest.NoBlobs{},
		SafeBlockFetcher:  derivetest.NewSafeBlocks(),
		AttributesBuilder: derivetest.StaticAttributesBuilder{GasLimit: 30_000_000},
	}
	l2SafeHead := eth.L2BlockRef{Hash: common.Hash{0x10}, Time: 0, L1Origin: genesis.ID()}
	p := NewPipeline(in, genesis, l2SafeHead, eth.SystemConfig{})

	// With no L1 block beyond genesis registered, L1 Traversal cannot find a next block to
	// advance to; the pipeline reports this as a temporary condition so the driver retries once
	// a new L1 block actually arrives, rather than treating the chain tip as a hard failure.
	_, err := p.Step(context.Background())
	require.Error(t, err)
	require.True(t, IsTemporary(err))
}

func TestPipelineResetReanchors(t *testing.T) {
	l1 := derivetest.NewL1()
	genesis := eth.L1BlockRef{Hash: common.Hash{1}, Number: 0}
	l1.AddBlock(genesis, nil, nil)

	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 100, ChannelTimeout: 50}
	in := PipelineInputs{
		Log:               testLogger(),
		RollupCfg:         cfg,
		L1Blocks:          l1,
		Blobs:             derivetest.NoBlobs{},
		SafeBlockFetcher:  derivetest.NewSafeBlocks(),
		AttributesBuilder: derivetest.StaticAttributesBuilder{GasLimit: 30_000_000},
	}
	l2SafeHead := eth.L2BlockRef{Hash: common.Hash{0x10}, L1Origin: genesis.ID()}
	p := NewPipeline(in, genesis, l2SafeHead, eth.SystemConfig{})

	newSafeHead := eth.L2BlockRef{Hash: common.Hash{0x20}, L1Origin: genesis.ID()}
	require.NoError(t, p.Reset(genesis, newSafeHead, eth.SystemConfig{}))
	require.Equal(t, genesis, p.Origin())
}

func TestPipelineResetClearsEveryStageBuffer(t *testing.T) {
	l1 := derivetest.NewL1()
	genesis := eth.L1BlockRef{Hash: common.Hash{1}, Number: 0}
	l1.AddBlock(genesis, nil, nil)

	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 100, ChannelTimeout: 50}
	in := PipelineInputs{
		Log:               testLogger(),
		RollupCfg:         cfg,
		L1Blocks:          l1,
		Blobs:             derivetest.NoBlobs{},
		SafeBlockFetcher:  derivetest.NewSafeBlocks(),
		AttributesBuilder: derivetest.StaticAttributesBuilder{GasLimit: 30_000_000},
	}
	l2SafeHead := eth.L2BlockRef{Hash: common.Hash{0x10}, L1Origin: genesis.ID()}
	p := NewPipeline(in, genesis, l2SafeHead, eth.SystemConfig{})

	// Simulate every stage holding buffered state mid-step, the way it would after ingesting
	// frames and channels from an L1 view that a reorg is about to invalidate. Reset must clear
	// every one of them, not just the two stages that re-anchor an explicit origin/safe head.
	p.l1Retrieval.txs = []txData{{data: []byte("stale")}}
	p.l1Retrieval.cursor = 1
	p.frameQueue.frames = []Frame{{ID: ChannelID{1}}}
	p.channelBank.channels[ChannelID{2}] = NewChannel(ChannelID{2}, genesis)
	p.channelBank.channelQueue = []ChannelID{{2}}
	p.chReader.data = []byte("stale-channel-bytes")
	p.chReader.ready = true
	p.attrQueue.batch = &SingularBatch{Timestamp: 1234}

	require.NoError(t, p.Reset(genesis, l2SafeHead, eth.SystemConfig{}))

	require.Nil(t, p.l1Retrieval.txs)
	require.Zero(t, p.l1Retrieval.cursor)
	require.Empty(t, p.frameQueue.frames)
	require.Empty(t, p.channelBank.channels)
	require.Empty(t, p.channelBank.channelQueue)
	require.Nil(t, p.chReader.data)
	require.False(t, p.chReader.ready)
	require.Nil(t, p.attrQueue.batch)
}
