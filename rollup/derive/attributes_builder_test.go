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

func TestPreparePayloadAttributesBedrock(t *testing.T) {
	l1 := derivetest.NewL1()
	epoch := eth.L1BlockRef{Hash: common.Hash{1}, Number: 10, Time: 1000}
	l1.AddBlock(epoch, nil, nil)

	cfg := &rollup.Config{BlockTime: 2}
	sysCfg := eth.SystemConfig{BatcherAddr: common.Address{2}, GasLimit: 30_000_000}
	builder := NewFetchingAttributesBuilder(testLogger(), cfg, l1, sysCfg)

	l2Parent := eth.L2BlockRef{Time: 998, L1Origin: eth.BlockID{Hash: common.Hash{0xff}}}
	attrs, err := builder.PreparePayloadAttributes(context.Background(), l2Parent, epoch.ID())
	require.NoError(t, err)
	require.Equal(t, eth.Uint64Quantity(1000), attrs.Timestamp)
	require.Len(t, attrs.Transactions, 1)
	require.True(t, attrs.NoTxPool)
	require.Nil(t, attrs.ParentBeaconBlockRoot)
}

func TestPreparePayloadAttributesSequenceNumberIncrementsWithinEpoch(t *testing.T) {
	l1 := derivetest.NewL1()
	epoch := eth.L1BlockRef{Hash: common.Hash{1}, Number: 10, Time: 1000}
	l1.AddBlock(epoch, nil, nil)

	cfg := &rollup.Config{BlockTime: 2}
	builder := NewFetchingAttributesBuilder(testLogger(), cfg, l1, eth.SystemConfig{})

	// l2Parent is already anchored on this same epoch, so sequence number should increment.
	l2Parent := eth.L2BlockRef{Time: 998, L1Origin: epoch.ID(), SequenceNumber: 4}
	attrs, err := builder.PreparePayloadAttributes(context.Background(), l2Parent, epoch.ID())
	require.NoError(t, err)

	decoded, err := L1InfoFromBytes([]byte(attrs.Transactions[0]))
	require.NoError(t, err)
	require.Equal(t, uint64(5), decoded.SequenceNumber)
}

func TestPreparePayloadAttributesEcotoneSetsBeaconRoot(t *testing.T) {
	l1 := derivetest.NewL1()
	epoch := eth.L1BlockRef{Hash: common.Hash{1}, Number: 10, Time: 1000}
	l1.AddBlock(epoch, nil, nil)

	ecotoneTime := uint64(500)
	cfg := &rollup.Config{BlockTime: 2, EcotoneTime: &ecotoneTime}
	sysCfg := eth.SystemConfig{Scalar: eth.Bytes32{0: 1}}
	builder := NewFetchingAttributesBuilder(testLogger(), cfg, l1, sysCfg)

	l2Parent := eth.L2BlockRef{Time: 998}
	attrs, err := builder.PreparePayloadAttributes(context.Background(), l2Parent, epoch.ID())
	require.NoError(t, err)
	require.NotNil(t, attrs.ParentBeaconBlockRoot)
	require.Equal(t, epoch.Hash, *attrs.ParentBeaconBlockRoot)
}
