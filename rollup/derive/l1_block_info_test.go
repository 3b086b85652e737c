package derive

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/opstack-go/derive-pipeline/rollup"
)

func TestL1BlockInfoBedrockRoundTrip(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2}
	info := &L1BlockInfo{
		Number:         100,
		Time:           1000,
		BaseFee:        big.NewInt(7),
		BlockHash:      common.Hash{1},
		SequenceNumber: 3,
		BatcherAddr:    common.Address{9},
	}
	data, err := info.MarshalBinary(cfg, 1000)
	require.NoError(t, err)

	decoded, err := L1InfoFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, info.Number, decoded.Number)
	require.Equal(t, info.Time, decoded.Time)
	require.Equal(t, info.BaseFee, decoded.BaseFee)
	require.Equal(t, info.BlockHash, decoded.BlockHash)
	require.Equal(t, info.SequenceNumber, decoded.SequenceNumber)
	require.Equal(t, info.BatcherAddr, decoded.BatcherAddr)
}

func TestL1BlockInfoEcotoneRoundTrip(t *testing.T) {
	ecotoneTime := uint64(500)
	cfg := &rollup.Config{BlockTime: 2, EcotoneTime: &ecotoneTime}
	info := &L1BlockInfo{
		Number:            100,
		Time:              1000,
		BaseFee:           big.NewInt(7),
		BlobBaseFee:       big.NewInt(11),
		BlockHash:         common.Hash{2},
		SequenceNumber:    1,
		BatcherAddr:       common.Address{8},
		BaseFeeScalar:     42,
		BlobBaseFeeScalar: 24,
	}
	// l2Timestamp must be well past the Ecotone activation block for the Ecotone encoding to
	// be chosen rather than the one-time activation-block Bedrock encoding.
	data, err := info.MarshalBinary(cfg, 1000)
	require.NoError(t, err)

	decoded, err := L1InfoFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, info.Number, decoded.Number)
	require.Equal(t, info.Time, decoded.Time)
	require.Equal(t, info.BaseFee, decoded.BaseFee)
	require.Equal(t, info.BlobBaseFee, decoded.BlobBaseFee)
	require.Equal(t, info.BlockHash, decoded.BlockHash)
	require.Equal(t, info.SequenceNumber, decoded.SequenceNumber)
	require.Equal(t, info.BatcherAddr, decoded.BatcherAddr)
	require.Equal(t, info.BaseFeeScalar, decoded.BaseFeeScalar)
	require.Equal(t, info.BlobBaseFeeScalar, decoded.BlobBaseFeeScalar)
}
