package derive

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/slices"

	"github.com/opstack-go/derive-pipeline/eth"
	"github.com/opstack-go/derive-pipeline/rollup"
)

// MaxChannelBankSize bounds the total estimated byte size the channel bank will hold across all
// open channels before it starts pruning the oldest one to make room, independent of explicit
// timeouts. This protects a verifier from a malicious batcher opening unboundedly many channels.
const MaxChannelBankSize = 100_000_000

// ChannelBank implements the Channel Bank stage: it ingests frames produced by the Frame Queue,
// groups them by channel ID, evicts channels that have timed out or that overflow the bank's
// total size budget, and emits each channel's assembled byte stream once it is complete.
type ChannelBank struct {
	log     log.Logger
	cfg     *rollup.Config
	prev    NextFrameProvider
	metrics Metricer

	channels     map[ChannelID]*Channel
	channelQueue []ChannelID
}

func NewChannelBank(log log.Logger, cfg *rollup.Config, prev NextFrameProvider, m Metricer) *ChannelBank {
	return &ChannelBank{
		log:      log,
		cfg:      cfg,
		prev:     prev,
		metrics:  m,
		channels: make(map[ChannelID]*Channel),
	}
}

func (cb *ChannelBank) Origin() eth.L1BlockRef {
	return cb.prev.Origin()
}

// Reset discards every open channel and the eviction queue ordering them: every one of them was
// opened against L1 origins the pipeline no longer trusts after a reorg, and a channel ID is not
// guaranteed to mean the same thing once derivation resumes from the reset origin.
func (cb *ChannelBank) Reset() {
	cb.channels = make(map[ChannelID]*Channel)
	cb.channelQueue = nil
}

func (cb *ChannelBank) totalSize() uint64 {
	var total uint64
	for _, ch := range cb.channels {
		total += ch.Size()
	}
	return total
}

// prune evicts the oldest channel, by queue order, until the bank is back under
// MaxChannelBankSize. It is the front-eviction rule the specification requires on overflow.
func (cb *ChannelBank) prune() {
	for cb.totalSize() > MaxChannelBankSize && len(cb.channelQueue) > 0 {
		id := cb.channelQueue[0]
		cb.channelQueue = cb.channelQueue[1:]
		delete(cb.channels, id)
		cb.metrics.RecordChannelEvicted(id)
	}
}

// pruneTimedOut drops every channel whose opening L1 block is more than ChannelTimeout blocks
// behind the current origin, the timeout-based eviction the specification requires independent
// of the size bound.
func (cb *ChannelBank) pruneTimedOut(origin eth.L1BlockRef) {
	cb.channelQueue = slices.DeleteFunc(cb.channelQueue, func(id ChannelID) bool {
		ch := cb.channels[id]
		if origin.Number <= ch.openBlock.Number+cb.cfg.ChannelTimeout {
			return false
		}
		delete(cb.channels, id)
		cb.metrics.RecordChannelTimedOut(id)
		return true
	})
}

// IngestFrame drops timed-out channels, routes one frame into its channel, opening a new channel
// as needed, and afterwards evicts the oldest channels while the bank is over its size bound.
func (cb *ChannelBank) IngestFrame(origin eth.L1BlockRef, f Frame) {
	cb.pruneTimedOut(origin)

	ch, ok := cb.channels[f.ID]
	if !ok {
		ch = NewChannel(f.ID, origin)
		cb.channels[f.ID] = ch
		cb.channelQueue = append(cb.channelQueue, f.ID)
		cb.metrics.RecordChannelOpened(f.ID)
	}
	if err := ch.AddFrame(f); err != nil {
		cb.log.Warn("dropping frame", "channel", f.ID, "frame_number", f.FrameNumber, "err", err)
	}
	cb.prune()
}

// NextData returns the next complete channel's assembled bytes, in the order its channel was
// opened, or NoChannelsAvailable / NotEnoughData if none is ready yet.
func (cb *ChannelBank) NextData(ctx context.Context) ([]byte, error) {
	origin := cb.prev.Origin()
	f, err := cb.prev.NextFrame(ctx)
	if err == io.EOF || err == Eof {
		return cb.popReady()
	}
	if err != nil {
		return nil, err
	}
	cb.IngestFrame(origin, f)
	return cb.popReady()
}

func (cb *ChannelBank) popReady() ([]byte, error) {
	if len(cb.channelQueue) == 0 {
		return nil, NoChannelsAvailable
	}
	id := cb.channelQueue[0]
	ch := cb.channels[id]
	if !ch.IsReady() {
		return nil, NotEnoughData
	}
	cb.channelQueue = cb.channelQueue[1:]
	delete(cb.channels, id)
	cb.metrics.RecordChannelRead(id, ch.Size())
	return ch.Assemble(), nil
}
