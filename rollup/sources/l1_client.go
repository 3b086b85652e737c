// Package sources implements the host-side collaborators the derivation pipeline depends on
// but never constructs itself: an ethclient-backed ChainProvider reading L1 over RPC.
package sources

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// L1ClientConfig bounds the size of L1Client's block-reference cache. Receipts and
// transactions are not cached: L1 Retrieval and UpdateSystemConfig each read a given L1 block
// at most once per pipeline step, so the RPC round-trip is not repeated within a run.
type L1ClientConfig struct {
	L1BlockRefsCacheSize int
}

// L1ClientDefaultConfig sizes the cache to roughly 1.5x the sequencing window, generous enough
// to cover a typical reorg-recovery walk back through recently seen origins without thrashing.
func L1ClientDefaultConfig(cfg *rollup.Config) *L1ClientConfig {
	size := int(cfg.SeqWindowSize) * 3 / 2
	if size > 1000 {
		size = 1000
	}
	if size < 16 {
		size = 16
	}
	return &L1ClientConfig{L1BlockRefsCacheSize: size}
}

// L1Client implements derive.ChainProvider against a live L1 RPC endpoint via ethclient,
// caching L1BlockRef lookups by hash since those never change once observed.
type L1Client struct {
	client *ethclient.Client
	log    log.Logger

	l1BlockRefsCache *lru.Cache[common.Hash, eth.L1BlockRef]
}

func NewL1Client(client *ethclient.Client, log log.Logger, cfg *L1ClientConfig) (*L1Client, error) {
	cache, err := lru.New[common.Hash, eth.L1BlockRef](cfg.L1BlockRefsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build L1 block ref cache: %w", err)
	}
	return &L1Client{client: client, log: log, l1BlockRefsCache: cache}, nil
}

func (s *L1Client) L1BlockRefByNumber(ctx context.Context, number uint64) (eth.L1BlockRef, error) {
	header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return eth.L1BlockRef{}, fmt.Errorf("failed to fetch header by number %d: %w", number, err)
	}
	ref := eth.InfoToL1BlockRef(eth.NewHeaderBlockInfo(header.Hash(), header.ParentHash, header.Number.Uint64(), header.Time))
	s.l1BlockRefsCache.Add(ref.Hash, ref)
	return ref, nil
}

func (s *L1Client) L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	if v, ok := s.l1BlockRefsCache.Get(hash); ok {
		return v, nil
	}
	header, err := s.client.HeaderByHash(ctx, hash)
	if err != nil {
		return eth.L1BlockRef{}, fmt.Errorf("failed to fetch header by hash %s: %w", hash, err)
	}
	ref := eth.InfoToL1BlockRef(eth.NewHeaderBlockInfo(header.Hash(), header.ParentHash, header.Number.Uint64(), header.Time))
	s.l1BlockRefsCache.Add(ref.Hash, ref)
	return ref, nil
}

func (s *L1Client) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	header, err := s.client.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header by hash %s: %w", hash, err)
	}
	info := eth.NewHeaderBlockInfo(header.Hash(), header.ParentHash, header.Number.Uint64(), header.Time)
	return info, nil
}

func (s *L1Client) FetchReceipts(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	block, err := s.client.BlockByHash(ctx, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch block by hash %s: %w", hash, err)
	}
	receipts := make(types.Receipts, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		receipt, err := s.client.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch receipt for tx %s: %w", tx.Hash(), err)
		}
		receipts = append(receipts, receipt)
	}
	info := eth.NewHeaderBlockInfo(block.Hash(), block.ParentHash(), block.NumberU64(), block.Time())
	return info, receipts, nil
}

func (s *L1Client) FetchTransactions(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	block, err := s.client.BlockByHash(ctx, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch block by hash %s: %w", hash, err)
	}
	info := eth.NewHeaderBlockInfo(block.Hash(), block.ParentHash(), block.NumberU64(), block.Time())
	return info, block.Transactions(), nil
}
