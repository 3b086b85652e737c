package derive

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// NextOriginProvider abstracts the L1 Traversal stage for L1 Retrieval: the current origin plus
// a way to advance past it once its data has been fully consumed.
type NextOriginProvider interface {
	Origin() eth.L1BlockRef
	Advance(ctx context.Context) error
	SystemConfig() eth.SystemConfig
}

// L1Retrieval implements the L1 Retrieval stage: for the current L1 origin, it finds every
// transaction submitted by the configured batcher address and returns their calldata (or blob
// data, post-Ecotone) one at a time, advancing the origin once a block's transactions are
// exhausted.
type L1Retrieval struct {
	log      log.Logger
	cfg      *rollup.Config
	l1Blocks ChainProvider
	blobs    BlobProvider
	prev     NextOriginProvider

	txs    []txData
	cursor int
}

type txData struct {
	data       []byte
	blobHashes []eth.IndexedBlobHash
}

func NewL1Retrieval(log log.Logger, cfg *rollup.Config, l1Blocks ChainProvider, blobs BlobProvider, prev NextOriginProvider) *L1Retrieval {
	return &L1Retrieval{log: log, cfg: cfg, l1Blocks: l1Blocks, blobs: blobs, prev: prev}
}

func (l1r *L1Retrieval) Origin() eth.L1BlockRef {
	return l1r.prev.Origin()
}

// Reset clears the buffered batcher transactions for whatever origin was being read when a
// reorg was detected: they were pulled from an L1 view the pipeline no longer trusts, and must
// not be handed to the Frame Queue once derivation resumes from the reset origin.
func (l1r *L1Retrieval) Reset() {
	l1r.txs = nil
	l1r.cursor = 0
}

// NextData returns the next batcher transaction's data blob for the current origin. Once the
// current origin's transactions are exhausted it advances the origin and returns
// NotEnoughData, letting the caller re-poll rather than blocking.
func (l1r *L1Retrieval) NextData(ctx context.Context) ([]byte, error) {
	if l1r.txs == nil {
		origin := l1r.prev.Origin()
		_, txs, err := l1r.l1Blocks.FetchTransactions(ctx, origin.Hash)
		if err != nil {
			return nil, NewTemporaryError(fmt.Errorf("failed to fetch transactions of %s: %w", origin, err))
		}
		sysCfg := l1r.prev.SystemConfig()
		l1r.txs = l1r.filterBatcherTransactions(txs, sysCfg.BatcherAddr)
		l1r.cursor = 0
	}

	if l1r.cursor >= len(l1r.txs) {
		l1r.txs = nil
		if err := l1r.prev.Advance(ctx); err != nil {
			return nil, err
		}
		return nil, NotEnoughData
	}

	tx := l1r.txs[l1r.cursor]
	l1r.cursor++

	if len(tx.blobHashes) > 0 {
		data, err := l1r.blobs.GetBlobs(ctx, l1r.prev.Origin(), tx.blobHashes)
		if err != nil {
			return nil, NewTemporaryError(fmt.Errorf("failed to fetch blobs for origin %s: %w", l1r.prev.Origin(), err))
		}
		return decodeBlobData(data)
	}
	return tx.data, nil
}

// filterBatcherTransactions keeps only the transactions sent to the configured batch inbox
// address and signed by the configured batcher address, the two checks the specification
// requires before a transaction's data is treated as rollup input.
func (l1r *L1Retrieval) filterBatcherTransactions(txs types.Transactions, batcherAddr common.Address) []txData {
	var out []txData
	signer := types.LatestSignerForChainID(l1r.cfg.L1ChainID)
	for _, tx := range txs {
		to := tx.To()
		if to == nil || *to != l1r.cfg.BatchInboxAddress {
			continue
		}
		sender, err := types.Sender(signer, tx)
		if err != nil || sender != batcherAddr {
			continue
		}
		if tx.Type() == types.BlobTxType {
			out = append(out, txData{blobHashes: blobHashesOf(tx)})
			continue
		}
		out = append(out, txData{data: tx.Data()})
	}
	return out
}

// blobHashesOf pairs each of a blob transaction's versioned hashes with its index, the form a
// BlobProvider expects to fetch them from the beacon chain's blob sidecar API.
func blobHashesOf(tx *types.Transaction) []eth.IndexedBlobHash {
	hashes := tx.BlobHashes()
	out := make([]eth.IndexedBlobHash, len(hashes))
	for i, h := range hashes {
		out[i] = eth.IndexedBlobHash{Index: uint64(i), Hash: h}
	}
	return out
}

// decodeBlobData extracts a batcher transaction's calldata-equivalent bytes from its first blob:
// a 3-byte big-endian length in bytes 1-3, then that many contiguous payload bytes from offset 4.
// Any further blobs are ignored, and the payload is not unpacked from field elements.
func decodeBlobData(blobs []*eth.Blob) ([]byte, error) {
	if len(blobs) == 0 {
		return nil, fmt.Errorf("no blobs to decode")
	}
	blob := blobs[0]
	if len(blob) < 4 {
		return nil, fmt.Errorf("blob too short to contain a length prefix")
	}
	length := uint32(blob[1])<<16 | uint32(blob[2])<<8 | uint32(blob[3])
	if int(length) > len(blob)-4 {
		return nil, fmt.Errorf("blob length prefix %d exceeds blob size", length)
	}
	return blob[4 : 4+length], nil
}
