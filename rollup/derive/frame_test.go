package derive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameMarshalUnmarshalRoundTrip(t *testing.T) {
	f := Frame{
		ID:          ChannelID{1, 2, 3},
		FrameNumber: 7,
		Data:        []byte("hello derivation"),
		IsLast:      true,
	}
	var buf bytes.Buffer
	require.NoError(t, f.MarshalBinary(&buf))

	var out Frame
	require.NoError(t, out.UnmarshalBinary(&buf))
	require.Equal(t, f, out)
}

func TestParseFramesRejectsUnknownVersion(t *testing.T) {
	_, err := ParseFrames([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseFramesRejectsEmptyData(t *testing.T) {
	_, err := ParseFrames(nil)
	require.Error(t, err)
}

func TestParseFramesRejectsTruncatedTrailingFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(DerivationVersion0)

	f1 := Frame{ID: ChannelID{9}, FrameNumber: 0, Data: []byte("abc"), IsLast: false}
	require.NoError(t, f1.MarshalBinary(&buf))

	f2 := Frame{ID: ChannelID{9}, FrameNumber: 1, Data: []byte("defg"), IsLast: true}
	var f2buf bytes.Buffer
	require.NoError(t, f2.MarshalBinary(&f2buf))
	// Truncate the second frame's encoding partway through its data: a conforming batcher
	// transaction never ends mid-frame, so the whole blob must be rejected rather than
	// returning just the first, complete frame.
	buf.Write(f2buf.Bytes()[:f2buf.Len()-2])

	frames, err := ParseFrames(buf.Bytes())
	require.Error(t, err)
	require.Nil(t, frames)
}

func TestParseFramesMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(DerivationVersion0)

	f1 := Frame{ID: ChannelID{9}, FrameNumber: 0, Data: []byte("abc"), IsLast: false}
	f2 := Frame{ID: ChannelID{9}, FrameNumber: 1, Data: []byte("defg"), IsLast: true}
	require.NoError(t, f1.MarshalBinary(&buf))
	require.NoError(t, f2.MarshalBinary(&buf))

	frames, err := ParseFrames(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, f1, frames[0])
	require.Equal(t, f2, frames[1])
}
