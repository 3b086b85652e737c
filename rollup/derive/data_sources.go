package derive

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/opstack-go/derive-pipeline/eth"
)

// ChainProvider is the pipeline's view of the L1 chain: everything the L1 Traversal and L1
// Retrieval stages need to walk blocks and read the batcher's calldata/blob transactions out of
// them. It is supplied by the host process; the pipeline never dials an RPC endpoint itself.
type ChainProvider interface {
	// L1BlockRefByNumber returns the canonical L1 block at the given number.
	L1BlockRefByNumber(ctx context.Context, number uint64) (eth.L1BlockRef, error)
	// L1BlockRefByHash returns the L1 block with the given hash, used to confirm the parent-hash
	// chain when the next origin is fetched by number.
	L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error)
	// InfoByHash returns the execution-layer block header info for the given L1 block hash.
	InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error)
	// FetchReceipts returns every receipt logged in the L1 block with the given hash, used to
	// detect SystemConfig-updating log events.
	FetchReceipts(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Receipts, error)
	// FetchTransactions returns the full transaction list of the L1 block with the given hash,
	// used by L1 Retrieval to find batcher-submitted calldata transactions.
	FetchTransactions(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error)
}

// BlobProvider fetches L1 blob-carrying transaction payloads (post-Ecotone data availability) by
// block and versioned hash.
type BlobProvider interface {
	GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error)
}

// SafeBlockFetcher looks up previously derived L2 blocks, used by the Batch Queue to validate a
// SpanBatch's claimed overlap against blocks it has already safely derived.
type SafeBlockFetcher interface {
	L2BlockRefByNumber(ctx context.Context, number uint64) (eth.L2BlockRef, error)
	PayloadByNumber(ctx context.Context, number uint64) (*eth.ExecutionPayloadEnvelope, error)
}

// AttributesBuilder turns an accepted Batch into the PayloadAttributes the execution engine will
// build or verify the next L2 block from. It is the only stage collaborator that needs the full
// SystemConfig rather than just an L1BlockRef, since it must compute the L1 attributes deposit.
type AttributesBuilder interface {
	PreparePayloadAttributes(ctx context.Context, l2Parent eth.L2BlockRef, epoch eth.BlockID) (*eth.PayloadAttributes, error)
}

// L1BlockRefByNumberFetcher names the by-number lookup on its own; ChainProvider satisfies it.
type L1BlockRefByNumberFetcher = eth.L1BlockRefByNumberFetcher

// NextFrameProvider abstracts the prior stage for any stage that consumes frames one at a time,
// letting each stage type be tested against a canned sequence of frames.
type NextFrameProvider interface {
	NextFrame(ctx context.Context) (Frame, error)
	Origin() eth.L1BlockRef
}

// NextBatchProvider abstracts the prior stage for the Batch Queue.
type NextBatchProvider interface {
	NextBatch(ctx context.Context) (Batch, error)
	Origin() eth.L1BlockRef
}

