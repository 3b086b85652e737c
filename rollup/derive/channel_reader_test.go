package derive

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/opstack-go/derive-pipeline/eth"
)

// scriptedChannelData is a NextDataProvider that yields one channel's worth of bytes, then Eof.
type scriptedChannelData struct {
	origin eth.L1BlockRef
	data   [][]byte
	cursor int
}

func (s *scriptedChannelData) Origin() eth.L1BlockRef { return s.origin }

func (s *scriptedChannelData) NextData(ctx context.Context) ([]byte, error) {
	if s.cursor >= len(s.data) {
		return nil, Eof
	}
	d := s.data[s.cursor]
	s.cursor++
	return d, nil
}

func encodeChannel(t *testing.T, batchType BatchType, batch interface{}) []byte {
	t.Helper()
	rlpBytes, err := rlp.EncodeToBytes(batch)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err = w.Write([]byte{byte(batchType)})
	require.NoError(t, err)
	_, err = w.Write(rlpBytes)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestChannelReaderDecodesSingularBatch(t *testing.T) {
	batch := &SingularBatch{ParentHash: common.Hash{1}, EpochNum: 5, Timestamp: 42}
	channelData := encodeChannel(t, SingularBatchType, batch)

	prev := &scriptedChannelData{data: [][]byte{channelData}}
	cr := NewChannelReader(testLogger(), prev)

	got, err := cr.NextBatch(context.Background())
	require.NoError(t, err)
	decoded, ok := got.(*SingularBatch)
	require.True(t, ok)
	require.Equal(t, batch.ParentHash, decoded.ParentHash)
	require.Equal(t, batch.EpochNum, decoded.EpochNum)
	require.Equal(t, batch.Timestamp, decoded.Timestamp)
}

func TestChannelReaderReturnsEofAtStreamEnd(t *testing.T) {
	batch := &SingularBatch{EpochNum: 1}
	channelData := encodeChannel(t, SingularBatchType, batch)

	prev := &scriptedChannelData{data: [][]byte{channelData}}
	cr := NewChannelReader(testLogger(), prev)

	_, err := cr.NextBatch(context.Background())
	require.NoError(t, err)

	_, err = cr.NextBatch(context.Background())
	require.ErrorIs(t, err, Eof)
}
