package derive

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/opstack-go/derive-pipeline/eth"
)

// MaxRLPBytesPerChannel bounds the decompressed size the Channel Reader will read out of one
// channel, protecting a verifier from a zip-bomb style channel that decompresses to gigabytes.
const MaxRLPBytesPerChannel = 10_000_000

// zlibReader is the subset of *zlib.Reader the Channel Reader relies on: it is both a
// ReadCloser and a Resetter, letting the reader be reused across channels without reallocating.
type zlibReader interface {
	io.ReadCloser
	zlib.Resetter
}

// NextDataProvider abstracts the Channel Bank for the Channel Reader: one complete channel's
// assembled bytes per call.
type NextDataProvider interface {
	NextData(ctx context.Context) ([]byte, error)
	Origin() eth.L1BlockRef
}

// ChannelReader implements the Channel Reader stage: it decompresses a complete channel's bytes
// with zlib, then repeatedly reads a one-byte BatchType tag followed by that type's RLP-encoded
// fields, until the decompressed stream is exhausted.
type ChannelReader struct {
	log log.Logger

	prev NextDataProvider

	ready    bool
	r        *bytes.Reader
	readZlib zlibReader

	data []byte
}

func NewChannelReader(log log.Logger, prev NextDataProvider) *ChannelReader {
	return &ChannelReader{log: log, prev: prev}
}

func (cr *ChannelReader) Origin() eth.L1BlockRef {
	return cr.prev.Origin()
}

// Reset discards whatever channel bytes and decompression cursor were in progress: they were
// read from a channel the Channel Bank itself has just discarded after a reorg, so decoding them
// further would read decompressed bytes from a stream that has nothing upstream confirming it
// anymore. The zlib reader and its backing bytes.Reader are left allocated; NextBatch
// reinitializes both against the next channel's bytes the same way it does for any fresh
// channel.
func (cr *ChannelReader) Reset() {
	cr.data = nil
	cr.ready = false
}

// writeChannel loads a freshly assembled channel's bytes, discarding whatever decode state was
// left over from the previous channel.
func (cr *ChannelReader) writeChannel(data []byte) {
	cr.data = data
	cr.ready = false
}

// NextBatch returns the next decoded Batch, or Eof once the current channel's stream is
// exhausted (the caller should then pull a fresh channel from the Channel Bank).
func (cr *ChannelReader) NextBatch(ctx context.Context) (Batch, error) {
	if cr.data == nil {
		data, err := cr.prev.NextData(ctx)
		if err != nil {
			return nil, err
		}
		cr.writeChannel(data)
	}

	if !cr.ready {
		if cr.r == nil {
			cr.r = bytes.NewReader(cr.data)
		} else {
			cr.r.Reset(cr.data)
		}
		if cr.readZlib == nil {
			zr, err := zlib.NewReader(cr.r)
			if err != nil {
				cr.data = nil
				return nil, NewTemporaryError(fmt.Errorf("failed to open zlib reader for channel: %w", err))
			}
			cr.readZlib = zr.(zlibReader)
		} else {
			if err := cr.readZlib.Reset(cr.r, nil); err != nil {
				cr.data = nil
				return nil, NewTemporaryError(fmt.Errorf("failed to reset zlib reader for channel: %w", err))
			}
		}
		// The channel is decompressed once, up to MaxRLPBytesPerChannel bytes in total; every
		// call then decodes the next batch from cr.r, which holds the decompressed bytes.
		decompressed, err := io.ReadAll(io.LimitReader(cr.readZlib, MaxRLPBytesPerChannel+1))
		if err != nil {
			cr.data = nil
			return nil, NewTemporaryError(fmt.Errorf("failed to decompress channel: %w", err))
		}
		if len(decompressed) > MaxRLPBytesPerChannel {
			cr.data = nil
			return nil, NewTemporaryError(fmt.Errorf("decompressed channel exceeds %d bytes", MaxRLPBytesPerChannel))
		}
		cr.r.Reset(decompressed)
		cr.ready = true
	}

	var typeByte [1]byte
	if _, err := io.ReadFull(cr.r, typeByte[:]); err != nil {
		cr.data = nil
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, Eof
		}
		return nil, NewTemporaryError(fmt.Errorf("failed to read batch type byte: %w", err))
	}

	stream := rlp.NewStream(cr.r, MaxRLPBytesPerChannel)
	switch BatchType(typeByte[0]) {
	case SingularBatchType:
		var b SingularBatch
		if err := stream.Decode(&b); err != nil {
			cr.data = nil
			return nil, NewTemporaryError(fmt.Errorf("failed to decode SingularBatch: %w", err))
		}
		return &b, nil
	case SpanBatchType:
		var b SpanBatch
		if err := stream.Decode(&b); err != nil {
			cr.data = nil
			return nil, NewTemporaryError(fmt.Errorf("failed to decode SpanBatch: %w", err))
		}
		return &b, nil
	default:
		cr.data = nil
		return nil, NewTemporaryError(fmt.Errorf("unrecognized batch type: %d", typeByte[0]))
	}
}
