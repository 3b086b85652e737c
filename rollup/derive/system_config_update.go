package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// ConfigUpdateEventABIHash is the log topic emitted by the SystemConfig contract whenever one of
// its tracked parameters changes. It never changes across upgrades; only the event's data
// encoding does.
var ConfigUpdateEventABIHash = common.HexToHash("0x1d2b0bda21d56b8bd12d4f94ebacffdfb35f5e226f84b461103bb8beab6353be")

// systemConfigUpdateType discriminates which SystemConfig field a given log entry updates.
type systemConfigUpdateType uint64

const (
	sysCfgUpdateBatcher systemConfigUpdateType = iota
	sysCfgUpdateGasConfig
	sysCfgUpdateGasLimit
)

// UpdateSystemConfig scans the successful receipts of one L1 block for logs whose first topic is
// ConfigUpdateEventABIHash, applying each in log order, and returns the updated configuration.
// Logs are matched by topic alone; the emitting contract's address is not checked. A log that cannot be decoded is treated as a fatal SystemConfigUpdate error,
// since an unparseable update could silently desynchronize every derivation consumer.
func UpdateSystemConfig(sysCfg eth.SystemConfig, cfg *rollup.Config, block eth.L1BlockRef, receipts types.Receipts) (eth.SystemConfig, error) {
	for _, rec := range receipts {
		if rec.Status != types.ReceiptStatusSuccessful {
			continue
		}
		for _, log := range rec.Logs {
			if len(log.Topics) == 0 || log.Topics[0] != ConfigUpdateEventABIHash {
				continue
			}
			var err error
			sysCfg, err = applyConfigUpdateLog(sysCfg, log)
			if err != nil {
				return sysCfg, fmt.Errorf("failed to apply config update log at block %s, log index %d: %w", block, log.Index, err)
			}
		}
	}
	return sysCfg, nil
}

// applyConfigUpdateLog decodes one SystemConfigUpdate event, matching the SystemConfig
// contract's ABI: topics[1] is a version word (only version 0 is defined), topics[2] is the
// update-type discriminant, and Data carries the ABI-encoded new value.
func applyConfigUpdateLog(sysCfg eth.SystemConfig, l *types.Log) (eth.SystemConfig, error) {
	if len(l.Topics) < 3 {
		return sysCfg, fmt.Errorf("expected at least 3 topics, got %d", len(l.Topics))
	}
	if l.Topics[1] != (common.Hash{}) {
		return sysCfg, fmt.Errorf("unrecognized SystemConfig update event version: %s", l.Topics[1])
	}
	updateType := systemConfigUpdateType(l.Topics[2].Big().Uint64())

	switch updateType {
	case sysCfgUpdateBatcher:
		if len(l.Data) < 32*3 {
			return sysCfg, fmt.Errorf("batcher update log data too short: %d", len(l.Data))
		}
		sysCfg.BatcherAddr = common.BytesToAddress(l.Data[32*2 : 32*3])
	case sysCfgUpdateGasConfig:
		if len(l.Data) < 32*4 {
			return sysCfg, fmt.Errorf("gas config update log data too short: %d", len(l.Data))
		}
		copy(sysCfg.Overhead[:], l.Data[32*2:32*3])
		copy(sysCfg.Scalar[:], l.Data[32*3:32*4])
	case sysCfgUpdateGasLimit:
		if len(l.Data) < 32*3 {
			return sysCfg, fmt.Errorf("gas limit update log data too short: %d", len(l.Data))
		}
		sysCfg.GasLimit = new(big.Int).SetBytes(l.Data[32*2 : 32*3]).Uint64()
	default:
		return sysCfg, fmt.Errorf("unrecognized SystemConfig update type: %d", updateType)
	}
	return sysCfg, nil
}
