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

func TestL1TraversalAdvancesAcrossBlocks(t *testing.T) {
	l1 := derivetest.NewL1()
	genesis := eth.L1BlockRef{Hash: common.Hash{1}, Number: 0}
	next := eth.L1BlockRef{Hash: common.Hash{2}, Number: 1, ParentHash: genesis.Hash}
	l1.AddBlock(genesis, nil, nil)
	l1.AddBlock(next, nil, nil)

	cfg := &rollup.Config{}
	traversal := NewL1Traversal(testLogger(), cfg, l1, eth.SystemConfig{}, genesis)

	require.Equal(t, genesis, traversal.Origin())
	require.NoError(t, traversal.Advance(context.Background()))
	require.Equal(t, next, traversal.Origin())
}

func TestL1TraversalDetectsReorg(t *testing.T) {
	l1 := derivetest.NewL1()
	genesis := eth.L1BlockRef{Hash: common.Hash{1}, Number: 0}
	badNext := eth.L1BlockRef{Hash: common.Hash{2}, Number: 1, ParentHash: common.Hash{0xff}}
	l1.AddBlock(genesis, nil, nil)
	l1.AddBlock(badNext, nil, nil)

	cfg := &rollup.Config{}
	traversal := NewL1Traversal(testLogger(), cfg, l1, eth.SystemConfig{}, genesis)

	err := traversal.Advance(context.Background())
	require.Error(t, err)
	require.True(t, IsReset(err))
	_, ok := AsReorgError(err)
	require.True(t, ok)
}
