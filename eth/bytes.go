package eth

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bytes32 is a fixed 32-byte value with hex JSON (de)serialization, used for the fee-scalar
// slots of SystemConfig that are opaque outside of a specific upgrade's decoding rules.
type Bytes32 [32]byte

func (b Bytes32) String() string {
	return hexutil.Encode(b[:])
}

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes32) UnmarshalJSON(text []byte) error {
	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		return fmt.Errorf("invalid Bytes32 JSON: %w", err)
	}
	return b.UnmarshalText([]byte(s))
}

func (b *Bytes32) UnmarshalText(text []byte) error {
	data, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("failed to decode bytes32: %w", err)
	}
	if len(data) != 32 {
		return fmt.Errorf("unexpected length of bytes32: %d", len(data))
	}
	copy(b[:], data)
	return nil
}

// Uint64Quantity is a quantity that serializes as a hex-string, matching the execution-engine
// JSON-RPC quantity convention for gas limits and similar fields in PayloadAttributes.
type Uint64Quantity uint64

func (v Uint64Quantity) MarshalText() ([]byte, error) {
	return hexutil.Uint64(v).MarshalText()
}

func (v *Uint64Quantity) UnmarshalJSON(b []byte) error {
	return (*hexutil.Uint64)(v).UnmarshalJSON(b)
}
