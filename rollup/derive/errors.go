package derive

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Eof is returned by a stage's Step when it has no more data to produce until its upstream
// source advances. It is not an error condition: the driver loop treats it as "done for now".
var Eof = errors.New("end of file")

// NotEnoughData is returned when a stage needs more input before it can make progress, but is
// not yet at Eof: the caller should not treat the pipeline as stuck, just re-poll upstream.
var NotEnoughData = errors.New("not enough data")

// NoChannel names a Channel Reader that has no channel to read. No stage returns it: when the
// Channel Bank has no complete channel, the Channel Reader passes the bank's NoChannelsAvailable
// or NotEnoughData through unchanged.
var NoChannel = errors.New("no channel")

// NoChannelsAvailable is returned by the Channel Bank when it holds no channels at all, ready
// or not, and must wait for the Frame Queue to hand it more frames.
var NoChannelsAvailable = errors.New("no channels available")

// ChannelNotFound names a frame that references a channel ID the Channel Bank has already
// evicted. No stage returns it: the Channel Bank opens a new channel for such a frame.
var ChannelNotFound = errors.New("channel not found")

// MissingOrigin names a stage asked to act without having observed an L1 origin. No stage
// returns it.
var MissingOrigin = errors.New("missing L1 origin")

// ErrorLevel classifies how the driver loop should react to a derivation error.
type ErrorLevel uint

const (
	// LevelTemporary means transient: retry the same step later without resetting anything.
	LevelTemporary ErrorLevel = iota
	// LevelReset means the pipeline's view of the L1/L2 chain correspondence is stale or wrong
	// and every stage must re-derive its starting state via Reset.
	LevelReset
	// LevelCritical means unrecoverable: the derivation pipeline cannot make progress and the
	// caller should surface this to an operator rather than retry.
	LevelCritical
)

// Error wraps an underlying cause with the severity the driver loop should react with. Stages
// never return a bare error for anything that reaches the driver loop; they wrap it with one of
// NewTemporaryError, NewResetError, or NewCriticalError so the loop knows how to respond.
type Error struct {
	Level ErrorLevel
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTemporaryError wraps err as a transient failure: the caller should back off and retry the
// same operation, not reset the pipeline.
func NewTemporaryError(err error) error {
	return &Error{Level: LevelTemporary, Err: err}
}

// NewResetError wraps err as a condition that requires the pipeline to Reset: the stages' cached
// state no longer matches the canonical L1 chain.
func NewResetError(err error) error {
	return &Error{Level: LevelReset, Err: err}
}

// NewCriticalError wraps err as unrecoverable: derivation cannot continue.
func NewCriticalError(err error) error {
	return &Error{Level: LevelCritical, Err: err}
}

// IsTemporary reports whether err (or anything it wraps) was marked transient.
func IsTemporary(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Level == LevelTemporary
}

// IsReset reports whether err (or anything it wraps) requires a pipeline Reset.
func IsReset(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Level == LevelReset
}

// IsCritical reports whether err (or anything it wraps) is unrecoverable.
func IsCritical(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Level == LevelCritical
}

// ReorgError signals that the L1 Traversal stage observed a block whose parent hash does not
// match the block it expected to extend: the canonical L1 chain has reorganized out from under
// the pipeline's cached origin.
type ReorgError struct {
	// Expected is the parent hash the pipeline expected the next L1 block to carry.
	Expected common.Hash
	// Actual is the parent hash the newly observed L1 block actually carries.
	Actual common.Hash
}

func (e *ReorgError) Error() string {
	return fmt.Sprintf("L1 reorg detected: expected parent %s, got %s", e.Expected, e.Actual)
}

// NewReorgError builds a ReorgError wrapped as a reset-level Error, since a reorg always
// requires the pipeline to reset before it can resume.
func NewReorgError(expected, actual common.Hash) error {
	return NewResetError(&ReorgError{Expected: expected, Actual: actual})
}

// AsReorgError extracts the ReorgError beneath err, if any, for callers that want the two
// hashes rather than just the formatted message.
func AsReorgError(err error) (*ReorgError, bool) {
	var e *ReorgError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// BadParentHashError reports that an accepted batch's L2 parent hash does not match the
// pipeline's current safe head, so the batch must be rejected and a Reset issued.
type BadParentHashError struct {
	Expected common.Hash
	Actual   common.Hash
}

func (e *BadParentHashError) Error() string {
	return fmt.Sprintf("bad parent hash: expected %s, got %s", e.Expected, e.Actual)
}

// BadTimestampError reports that a batch's timestamp does not land on the expected
// genesis-plus-height*block_time boundary.
type BadTimestampError struct {
	Expected uint64
	Actual   uint64
}

func (e *BadTimestampError) Error() string {
	return fmt.Sprintf("bad timestamp: expected %d, got %d", e.Expected, e.Actual)
}

// NewResetBadParentHash and NewResetBadTimestamp build the two named Reset sub-cases the
// specification distinguishes, both still reported to the driver loop as LevelReset.
func NewResetBadParentHash(expected, actual common.Hash) error {
	return NewResetError(&BadParentHashError{Expected: expected, Actual: actual})
}

func NewResetBadTimestamp(expected, actual uint64) error {
	return NewResetError(&BadTimestampError{Expected: expected, Actual: actual})
}
