package derive

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
	"github.com/opstack-go/derive-pipeline/rollup/derive/derivetest"
)

// scriptedSingularBatches is a NextSingularBatchProvider that yields a fixed sequence of batches, then Eof.
type scriptedSingularBatches struct {
	origin  eth.L1BlockRef
	batches []*SingularBatch
	cursor  int
}

func (s *scriptedSingularBatches) Origin() eth.L1BlockRef { return s.origin }

func (s *scriptedSingularBatches) NextBatch(ctx context.Context) (*SingularBatch, error) {
	if s.cursor >= len(s.batches) {
		return nil, Eof
	}
	b := s.batches[s.cursor]
	s.cursor++
	return b, nil
}

func TestAttributesQueueBuildsFromBatch(t *testing.T) {
	batch := &SingularBatch{
		EpochNum:     5,
		EpochHash:    common.Hash{5},
		Timestamp:    1234,
		Transactions: []hexutil.Bytes{{0x01, 0x02}},
	}
	prev := &scriptedSingularBatches{batches: []*SingularBatch{batch}}
	aq := NewAttributesQueue(testLogger(), &rollup.Config{}, derivetest.StaticAttributesBuilder{GasLimit: 30_000_000}, prev)

	attrs, err := aq.NextAttributes(context.Background(), eth.L2BlockRef{})
	require.NoError(t, err)
	require.Equal(t, eth.Uint64Quantity(1234), attrs.Timestamp)
	require.True(t, attrs.NoTxPool)
	require.Equal(t, batch.Transactions[0], attrs.Transactions[0])
}

func TestAttributesQueuePullsFreshBatchAfterConsuming(t *testing.T) {
	first := &SingularBatch{EpochNum: 1, Timestamp: 100}
	second := &SingularBatch{EpochNum: 2, Timestamp: 102}
	prev := &scriptedSingularBatches{batches: []*SingularBatch{first, second}}
	aq := NewAttributesQueue(testLogger(), &rollup.Config{}, derivetest.StaticAttributesBuilder{GasLimit: 30_000_000}, prev)

	attrs1, err := aq.NextAttributes(context.Background(), eth.L2BlockRef{})
	require.NoError(t, err)
	require.Equal(t, eth.Uint64Quantity(100), attrs1.Timestamp)

	attrs2, err := aq.NextAttributes(context.Background(), eth.L2BlockRef{})
	require.NoError(t, err)
	require.Equal(t, eth.Uint64Quantity(102), attrs2.Timestamp)
}

func TestAttributesQueuePropagatesEof(t *testing.T) {
	prev := &scriptedSingularBatches{}
	aq := NewAttributesQueue(testLogger(), &rollup.Config{}, derivetest.StaticAttributesBuilder{GasLimit: 30_000_000}, prev)

	_, err := aq.NextAttributes(context.Background(), eth.L2BlockRef{})
	require.ErrorIs(t, err, Eof)
}
