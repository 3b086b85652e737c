package derive

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

func testConfig() *rollup.Config {
	return &rollup.Config{
		BlockTime:         2,
		SeqWindowSize:     100,
		MaxSequencerDrift: 600,
	}
}

func TestCheckSingularBatchAccepts(t *testing.T) {
	cfg := testConfig()
	safeHead := eth.L2BlockRef{Hash: common.Hash{1}, Time: 1000}
	epoch := eth.L1BlockRef{Hash: common.Hash{2}, Number: 50, Time: 999}
	batch := &SingularBatch{
		ParentHash: safeHead.Hash,
		EpochNum:   epoch.Number,
		EpochHash:  epoch.Hash,
		Timestamp:  1002,
	}
	v := checkSingularBatch(cfg, testLogger(), []eth.L1BlockRef{epoch}, safeHead, batch, eth.L1BlockRef{Number: 50})
	require.Equal(t, BatchAccept, v)
}

func TestCheckSingularBatchDropsOnBadParentHash(t *testing.T) {
	cfg := testConfig()
	safeHead := eth.L2BlockRef{Hash: common.Hash{1}, Time: 1000}
	epoch := eth.L1BlockRef{Hash: common.Hash{2}, Number: 50, Time: 999}
	batch := &SingularBatch{
		ParentHash: common.Hash{0xff},
		EpochNum:   epoch.Number,
		EpochHash:  epoch.Hash,
		Timestamp:  1002,
	}
	v := checkSingularBatch(cfg, testLogger(), []eth.L1BlockRef{epoch}, safeHead, batch, eth.L1BlockRef{Number: 50})
	require.Equal(t, BatchDrop, v)
}

func TestCheckSingularBatchFutureTimestamp(t *testing.T) {
	cfg := testConfig()
	safeHead := eth.L2BlockRef{Hash: common.Hash{1}, Time: 1000}
	epoch := eth.L1BlockRef{Hash: common.Hash{2}, Number: 50, Time: 999}
	batch := &SingularBatch{
		ParentHash: safeHead.Hash,
		EpochNum:   epoch.Number,
		EpochHash:  epoch.Hash,
		Timestamp:  1100,
	}
	v := checkSingularBatch(cfg, testLogger(), []eth.L1BlockRef{epoch}, safeHead, batch, eth.L1BlockRef{Number: 50})
	require.Equal(t, BatchFuture, v)
}

func TestCheckSingularBatchDropsEmbeddedDeposit(t *testing.T) {
	cfg := testConfig()
	safeHead := eth.L2BlockRef{Hash: common.Hash{1}, Time: 1000}
	epoch := eth.L1BlockRef{Hash: common.Hash{2}, Number: 50, Time: 999}
	batch := &SingularBatch{
		ParentHash:   safeHead.Hash,
		EpochNum:     epoch.Number,
		EpochHash:    epoch.Hash,
		Timestamp:    1002,
		Transactions: []hexutil.Bytes{{0x7e, 0x01}},
	}
	v := checkSingularBatch(cfg, testLogger(), []eth.L1BlockRef{epoch}, safeHead, batch, eth.L1BlockRef{Number: 50})
	require.Equal(t, BatchDrop, v)
}

func TestCheckSpanBatchAcceptsConsistentElements(t *testing.T) {
	cfg := testConfig()
	safeHead := eth.L2BlockRef{Hash: common.Hash{1}, Time: 1000}
	epoch := eth.L1BlockRef{Hash: common.Hash{2}, Number: 50, Time: 999}
	batch := &SpanBatch{
		ParentHash: safeHead.Hash,
		EpochNum:   epoch.Number,
		Elements: []SpanBatchElement{
			{Timestamp: 1002, EpochNum: epoch.Number},
			{Timestamp: 1004, EpochNum: epoch.Number},
		},
	}
	v := checkSpanBatch(context.Background(), cfg, testLogger(), []eth.L1BlockRef{epoch}, safeHead, batch, eth.L1BlockRef{Number: 50}, nil)
	require.Equal(t, BatchAccept, v)
}

func TestCheckSpanBatchDropsOnTimestampGap(t *testing.T) {
	cfg := testConfig()
	safeHead := eth.L2BlockRef{Hash: common.Hash{1}, Time: 1000}
	epoch := eth.L1BlockRef{Hash: common.Hash{2}, Number: 50, Time: 999}
	batch := &SpanBatch{
		ParentHash: safeHead.Hash,
		EpochNum:   epoch.Number,
		Elements: []SpanBatchElement{
			{Timestamp: 1002, EpochNum: epoch.Number},
			{Timestamp: 1010, EpochNum: epoch.Number},
		},
	}
	v := checkSpanBatch(context.Background(), cfg, testLogger(), []eth.L1BlockRef{epoch}, safeHead, batch, eth.L1BlockRef{Number: 50}, nil)
	require.Equal(t, BatchDrop, v)
}
