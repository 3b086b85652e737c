package derive

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/opstack-go/derive-pipeline/eth"
)

// NextTxDataProvider abstracts the L1 Retrieval stage for the Frame Queue: one batcher
// transaction's raw data blob per call.
type NextTxDataProvider interface {
	NextData(ctx context.Context) ([]byte, error)
	Origin() eth.L1BlockRef
}

// FrameQueue implements the Frame Queue stage: it buffers the frames parsed out of one batcher
// transaction blob and yields them one at a time, pulling the next blob once its frames are
// exhausted.
type FrameQueue struct {
	log  log.Logger
	prev NextTxDataProvider

	frames []Frame
}

func NewFrameQueue(log log.Logger, prev NextTxDataProvider) *FrameQueue {
	return &FrameQueue{log: log, prev: prev}
}

func (fq *FrameQueue) Origin() eth.L1BlockRef {
	return fq.prev.Origin()
}

// Reset drops any buffered frames parsed out of a batcher transaction blob read under the
// pre-reset L1 view: a reorg invalidates the blob they came from just as much as the blob
// itself.
func (fq *FrameQueue) Reset() {
	fq.frames = nil
}

// NextFrame returns the next buffered frame, pulling and parsing a fresh batcher-transaction
// blob from L1 Retrieval whenever the buffer is empty. A blob that fails to parse is dropped
// with a warning rather than treated as a pipeline error, since a malicious or buggy batcher
// submitting garbage must never stall a conforming verifier.
func (fq *FrameQueue) NextFrame(ctx context.Context) (Frame, error) {
	if len(fq.frames) == 0 {
		data, err := fq.prev.NextData(ctx)
		if err != nil {
			return Frame{}, err
		}
		frames, err := ParseFrames(data)
		if err != nil {
			fq.log.Warn("dropping invalid frame data", "origin", fq.prev.Origin(), "err", err)
			return Frame{}, NotEnoughData
		}
		fq.frames = frames
	}
	f := fq.frames[0]
	fq.frames = fq.frames[1:]
	return f, nil
}
