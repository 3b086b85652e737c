// Package derivetest provides scripted test doubles for the derivation pipeline's external
// collaborators (ChainProvider, BlobProvider, SafeBlockFetcher, AttributesBuilder), so each
// stage can be tested without an RPC endpoint.
package derivetest

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/opstack-go/derive-pipeline/eth"
)

// L1 is a scripted ChainProvider backed by an in-memory chain of L1 blocks, keyed by hash and
// number, along with per-block receipts and transactions fixed up by tests via AddBlock.
type L1 struct {
	blocksByNumber map[uint64]eth.L1BlockRef
	blocksByHash   map[common.Hash]eth.L1BlockRef
	receipts       map[common.Hash]types.Receipts
	txs            map[common.Hash]types.Transactions
}

func NewL1() *L1 {
	return &L1{
		blocksByNumber: make(map[uint64]eth.L1BlockRef),
		blocksByHash:   make(map[common.Hash]eth.L1BlockRef),
		receipts:       make(map[common.Hash]types.Receipts),
		txs:            make(map[common.Hash]types.Transactions),
	}
}

// AddBlock registers a block, its receipts, and its transactions for later lookup.
func (l *L1) AddBlock(ref eth.L1BlockRef, receipts types.Receipts, txs types.Transactions) {
	l.blocksByNumber[ref.Number] = ref
	l.blocksByHash[ref.Hash] = ref
	l.receipts[ref.Hash] = receipts
	l.txs[ref.Hash] = txs
}

func (l *L1) L1BlockRefByNumber(ctx context.Context, number uint64) (eth.L1BlockRef, error) {
	ref, ok := l.blocksByNumber[number]
	if !ok {
		return eth.L1BlockRef{}, fmt.Errorf("no L1 block at number %d", number)
	}
	return ref, nil
}

func (l *L1) L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	ref, ok := l.blocksByHash[hash]
	if !ok {
		return eth.L1BlockRef{}, fmt.Errorf("no L1 block with hash %s", hash)
	}
	return ref, nil
}

func (l *L1) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	ref, ok := l.blocksByHash[hash]
	if !ok {
		return nil, fmt.Errorf("no L1 block with hash %s", hash)
	}
	return eth.NewHeaderBlockInfo(ref.Hash, ref.ParentHash, ref.Number, ref.Time), nil
}

func (l *L1) FetchReceipts(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	info, err := l.InfoByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	return info, l.receipts[hash], nil
}

func (l *L1) FetchTransactions(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	info, err := l.InfoByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	return info, l.txs[hash], nil
}

// SafeBlocks is a scripted SafeBlockFetcher backed by an in-memory map of previously derived L2
// blocks, used to exercise span-batch overlap validation.
type SafeBlocks struct {
	refs     map[uint64]eth.L2BlockRef
	payloads map[uint64]*eth.ExecutionPayloadEnvelope
}

func NewSafeBlocks() *SafeBlocks {
	return &SafeBlocks{refs: make(map[uint64]eth.L2BlockRef), payloads: make(map[uint64]*eth.ExecutionPayloadEnvelope)}
}

func (s *SafeBlocks) Add(ref eth.L2BlockRef, payload *eth.ExecutionPayloadEnvelope) {
	s.refs[ref.Number] = ref
	s.payloads[ref.Number] = payload
}

func (s *SafeBlocks) L2BlockRefByNumber(ctx context.Context, number uint64) (eth.L2BlockRef, error) {
	ref, ok := s.refs[number]
	if !ok {
		return eth.L2BlockRef{}, fmt.Errorf("no L2 block at number %d", number)
	}
	return ref, nil
}

func (s *SafeBlocks) PayloadByNumber(ctx context.Context, number uint64) (*eth.ExecutionPayloadEnvelope, error) {
	payload, ok := s.payloads[number]
	if !ok {
		return nil, fmt.Errorf("no payload at number %d", number)
	}
	return payload, nil
}

// NoBlobs is a BlobProvider that always errors, for tests of calldata-only configurations.
type NoBlobs struct{}

func (NoBlobs) GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error) {
	return nil, fmt.Errorf("no blobs configured")
}

// StaticAttributesBuilder returns a fixed PayloadAttributes (sans batch transactions) for every
// call, letting Attributes Queue tests focus on how batches get merged in rather than on L1
// attributes deposit encoding.
type StaticAttributesBuilder struct {
	GasLimit uint64
}

func (b StaticAttributesBuilder) PreparePayloadAttributes(ctx context.Context, l2Parent eth.L2BlockRef, epoch eth.BlockID) (*eth.PayloadAttributes, error) {
	gasLimit := eth.Uint64Quantity(b.GasLimit)
	return &eth.PayloadAttributes{
		GasLimit: &gasLimit,
	}, nil
}
