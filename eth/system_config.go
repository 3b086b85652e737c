package eth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SystemConfig tracks the rollup parameters that can be changed by L1 receipts emitted from the
// SystemConfig contract (batcher address, fee scalars, gas limit). It is threaded through the
// pipeline and updated every time the L1 origin advances past a block containing such a receipt.
type SystemConfig struct {
	// BatcherAddr is the address allowed to submit batcher transactions/blobs.
	BatcherAddr common.Address `json:"batcherAddr"`
	// Overhead and Scalar are the pre-Ecotone L1 fee parameters.
	Overhead Bytes32 `json:"overhead"`
	Scalar   Bytes32 `json:"scalar"`
	// GasLimit is the L2 gas limit to use for newly built blocks.
	GasLimit uint64 `json:"gasLimit"`
}

// EcotoneScalars decodes the post-Ecotone base-fee and blob-base-fee scalars from the packed
// Scalar slot. The slot's first byte is a version discriminant; version 1 packs two uint32
// scalars, matching the L1Block predeploy's `setL1BlockValuesEcotone` calldata layout.
func (sysCfg *SystemConfig) EcotoneScalars() (blobBaseFeeScalar uint32, baseFeeScalar uint32, err error) {
	if sysCfg.Scalar[0] != 1 {
		return 0, 0, fmt.Errorf("unrecognized scalar version %d, expected 1 for ecotone", sysCfg.Scalar[0])
	}
	blobBaseFeeScalar = bigEndianUint32(sysCfg.Scalar[24:28])
	baseFeeScalar = bigEndianUint32(sysCfg.Scalar[28:32])
	return blobBaseFeeScalar, baseFeeScalar, nil
}

func bigEndianUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Genesis describes the anchor point the derivation pipeline resets to when it has no better
// information: the first L1 and L2 blocks of the rollup, plus the initial SystemConfig.
type Genesis struct {
	L1           BlockID      `json:"l1"`
	L2           BlockID      `json:"l2"`
	L2Time       uint64       `json:"l2_time"`
	SystemConfig SystemConfig `json:"system_config"`
}

// BigBatcherAddr returns the batcher address as a big.Int, used when it needs to be ABI-encoded
// as a left-padded 32-byte word.
func (sysCfg *SystemConfig) BigBatcherAddr() *big.Int {
	return new(big.Int).SetBytes(sysCfg.BatcherAddr[:])
}
