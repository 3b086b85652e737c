package derive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

const (
	L1InfoFuncBedrockSignature = "setL1BlockValues(uint64,uint64,uint256,bytes32,uint64,bytes32,uint256,uint256)"
	L1InfoFuncEcotoneSignature = "setL1BlockValuesEcotone()"
)

var (
	L1InfoFuncBedrockBytes4 = crypto.Keccak256([]byte(L1InfoFuncBedrockSignature))[:4]
	L1InfoFuncEcotoneBytes4 = crypto.Keccak256([]byte(L1InfoFuncEcotoneSignature))[:4]

	// L1InfoDepositerAddress is the sender the execution engine expects the L1 attributes deposit
	// transaction to originate from. It has no known private key.
	L1InfoDepositerAddress = common.HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001")

	// L1BlockAddress is the predeploy the L1 attributes deposit transaction calls.
	L1BlockAddress = common.HexToAddress("0x4200000000000000000000000000000000000015")
)

// RegolithSystemTxGas is the fixed gas limit the L1 attributes deposit transaction carries once
// Regolith makes system transactions pay gas like any other transaction.
const RegolithSystemTxGas = 1_000_000

// L1BlockInfo is the information passed to the L1Block predeploy's setL1BlockValues call, the
// payload of the deposit transaction every L2 block must start with.
type L1BlockInfo struct {
	Number    uint64
	Time      uint64
	BaseFee   *big.Int
	BlockHash common.Hash
	// SequenceNumber is the number of L2 blocks built so far within the current epoch.
	SequenceNumber uint64
	BatcherAddr    common.Address

	L1FeeOverhead eth.Bytes32 // ignored after Ecotone
	L1FeeScalar   eth.Bytes32 // ignored after Ecotone

	BlobBaseFee       *big.Int // Ecotone onward
	BaseFeeScalar     uint32   // Ecotone onward
	BlobBaseFeeScalar uint32   // Ecotone onward
}

// MarshalBinary encodes the L1 attributes deposit transaction's calldata, choosing the Bedrock
// or Ecotone ABI based on whether cfg has activated Ecotone at l2Timestamp.
func (info *L1BlockInfo) MarshalBinary(cfg *rollup.Config, l2Timestamp uint64) ([]byte, error) {
	if cfg.IsEcotone(l2Timestamp) && !cfg.IsEcotoneActivationBlock(l2Timestamp) {
		return info.marshalBinaryEcotone()
	}
	return info.marshalBinaryBedrock()
}

func (info *L1BlockInfo) marshalBinaryBedrock() ([]byte, error) {
	w := new(bytes.Buffer)
	w.Write(L1InfoFuncBedrockBytes4)
	writeUint256(w, new(big.Int).SetUint64(info.Number))
	writeUint256(w, new(big.Int).SetUint64(info.Time))
	writeUint256(w, info.BaseFee)
	w.Write(info.BlockHash[:])
	writeUint256(w, new(big.Int).SetUint64(info.SequenceNumber))
	writeAddressWord(w, info.BatcherAddr)
	w.Write(info.L1FeeOverhead[:])
	w.Write(info.L1FeeScalar[:])
	return w.Bytes(), nil
}

func (info *L1BlockInfo) unmarshalBinaryBedrock(data []byte) error {
	if len(data) != 4+32*8 {
		return fmt.Errorf("data is unexpected length: %d", len(data))
	}
	offset := 4
	info.Number = bigEndianUint64(data[offset+24 : offset+32])
	offset += 32
	info.Time = bigEndianUint64(data[offset+24 : offset+32])
	offset += 32
	info.BaseFee = new(big.Int).SetBytes(data[offset : offset+32])
	offset += 32
	info.BlockHash = common.BytesToHash(data[offset : offset+32])
	offset += 32
	info.SequenceNumber = bigEndianUint64(data[offset+24 : offset+32])
	offset += 32
	info.BatcherAddr = common.BytesToAddress(data[offset+12 : offset+32])
	offset += 32
	copy(info.L1FeeOverhead[:], data[offset:offset+32])
	offset += 32
	copy(info.L1FeeScalar[:], data[offset:offset+32])
	return nil
}

func (info *L1BlockInfo) marshalBinaryEcotone() ([]byte, error) {
	w := new(bytes.Buffer)
	w.Write(L1InfoFuncEcotoneBytes4)
	for _, v := range []uint64{
		uint64(info.BaseFeeScalar),
		uint64(info.BlobBaseFeeScalar),
	} {
		if err := binary.Write(w, binary.BigEndian, uint32(v)); err != nil {
			return nil, err
		}
	}
	for _, v := range []uint64{info.SequenceNumber, info.Time, info.Number} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	writeUint256(w, info.BaseFee)
	blobBaseFee := info.BlobBaseFee
	if blobBaseFee == nil {
		blobBaseFee = big.NewInt(1) // matches the EIP-4844 minimum blob base fee
	}
	writeUint256(w, blobBaseFee)
	w.Write(info.BlockHash[:])
	writeAddressWord(w, info.BatcherAddr)
	return w.Bytes(), nil
}

func (info *L1BlockInfo) unmarshalBinaryEcotone(data []byte) error {
	if len(data) != 4+4+4+8+8+8+32+32+32+32 {
		return fmt.Errorf("data is unexpected length: %d", len(data))
	}
	offset := 4
	info.BaseFeeScalar = binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	info.BlobBaseFeeScalar = binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	info.SequenceNumber = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	info.Time = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	info.Number = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	info.BaseFee = new(big.Int).SetBytes(data[offset : offset+32])
	offset += 32
	info.BlobBaseFee = new(big.Int).SetBytes(data[offset : offset+32])
	offset += 32
	info.BlockHash = common.BytesToHash(data[offset : offset+32])
	offset += 32
	info.BatcherAddr = common.BytesToAddress(data[offset+12 : offset+32])
	return nil
}

func writeUint256(w *bytes.Buffer, v *big.Int) {
	var buf [32]byte
	v.FillBytes(buf[:])
	w.Write(buf[:])
}

func writeAddressWord(w *bytes.Buffer, addr common.Address) {
	var buf [32]byte
	copy(buf[12:], addr[:])
	w.Write(buf[:])
}

func bigEndianUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// L1InfoDepositBytes returns the calldata for the L1 attributes deposit transaction given a
// fully populated L1BlockInfo, choosing the correct ABI via cfg and l2Timestamp.
func L1InfoDepositBytes(cfg *rollup.Config, info *L1BlockInfo, l2Timestamp uint64) ([]byte, error) {
	return info.MarshalBinary(cfg, l2Timestamp)
}

// errInvalidFormat is returned by unmarshaling helpers when calldata does not match any known
// selector.
var errInvalidFormat = errors.New("unrecognized L1 attributes selector")

// L1InfoFromBytes parses the calldata of an already-observed L1 attributes deposit transaction
// back into an L1BlockInfo, used by tests to round-trip the encoding.
func L1InfoFromBytes(data []byte) (*L1BlockInfo, error) {
	if len(data) < 4 {
		return nil, errInvalidFormat
	}
	var info L1BlockInfo
	switch {
	case bytes.Equal(data[:4], L1InfoFuncBedrockBytes4):
		return &info, info.unmarshalBinaryBedrock(data)
	case bytes.Equal(data[:4], L1InfoFuncEcotoneBytes4):
		return &info, info.unmarshalBinaryEcotone(data)
	default:
		return nil, errInvalidFormat
	}
}
