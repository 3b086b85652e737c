package derive

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// scriptedFrames is a NextFrameProvider that yields a fixed sequence of frames, then Eof.
type scriptedFrames struct {
	origin eth.L1BlockRef
	frames []Frame
	cursor int
}

func (s *scriptedFrames) Origin() eth.L1BlockRef { return s.origin }

func (s *scriptedFrames) NextFrame(ctx context.Context) (Frame, error) {
	if s.cursor >= len(s.frames) {
		return Frame{}, Eof
	}
	f := s.frames[s.cursor]
	s.cursor++
	return f, nil
}

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func TestChannelBankAssemblesSingleChannel(t *testing.T) {
	id := ChannelID{1}
	origin := eth.L1BlockRef{Number: 100}
	prev := &scriptedFrames{
		origin: origin,
		frames: []Frame{
			{ID: id, FrameNumber: 0, Data: []byte("hello ")},
			{ID: id, FrameNumber: 1, Data: []byte("world"), IsLast: true},
		},
	}
	cfg := &rollup.Config{ChannelTimeout: 100}
	cb := NewChannelBank(testLogger(), cfg, prev, NoopMetrics{})

	_, err := cb.NextData(context.Background())
	require.ErrorIs(t, err, NotEnoughData)

	data, err := cb.NextData(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), data)
}

func TestChannelBankPrunesTimedOutChannels(t *testing.T) {
	id := ChannelID{1}
	cfg := &rollup.Config{ChannelTimeout: 10}
	cb := NewChannelBank(testLogger(), cfg, &scriptedFrames{}, NoopMetrics{})

	cb.IngestFrame(eth.L1BlockRef{Number: 0}, Frame{ID: id, FrameNumber: 0, Data: []byte("x")})
	require.Len(t, cb.channels, 1)

	cb.pruneTimedOut(eth.L1BlockRef{Number: 11})
	require.Len(t, cb.channels, 0, "channel open at block 0 must be evicted once origin passes 0+ChannelTimeout")
}

func TestChannelBankPrunesOldestOnSizeOverflow(t *testing.T) {
	cfg := &rollup.Config{ChannelTimeout: 1000}
	cb := NewChannelBank(testLogger(), cfg, &scriptedFrames{}, NoopMetrics{})

	big := make([]byte, MaxChannelBankSize)
	cb.IngestFrame(eth.L1BlockRef{Number: 0}, Frame{ID: ChannelID{1}, FrameNumber: 0, Data: []byte("first")})
	cb.IngestFrame(eth.L1BlockRef{Number: 1}, Frame{ID: ChannelID{2}, FrameNumber: 0, Data: big})

	require.Len(t, cb.channels, 1, "the first, oldest channel must have been evicted to make room")
	_, stillOpen := cb.channels[ChannelID{2}]
	require.True(t, stillOpen)
}
