package eth

import "github.com/ethereum/go-ethereum/common"

// BlobSize is the fixed size of a single KZG blob as committed on the L1 beacon chain.
const BlobSize = 4096 * 32

// Blob is a single EIP-4844 blob as retrieved from the beacon chain's blob sidecar API, the
// Ecotone data-availability source for batcher submissions.
type Blob [BlobSize]byte

// IndexedBlobHash pairs a blob's position within its carrying transaction with the versioned
// hash the transaction committed to, the two fields a BlobProvider needs to fetch and verify it.
type IndexedBlobHash struct {
	Index uint64
	Hash  common.Hash
}
