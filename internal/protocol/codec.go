package protocol

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrUnknownType is returned when a message carries an unrecognized type tag.
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrMalformed is returned for structurally invalid messages.
	ErrMalformed = errors.New("protocol: malformed message")
)

// compressedMarker prefixes a zstd-compressed JSON frame.
const compressedMarker byte = 0x01

// maxDecodedFrame bounds the memory a single compressed frame may expand to.
const maxDecodedFrame = 64 << 20

//go:embed messages.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("messages.schema.json", schemaJSON)

// Base lets us route a JSON message by type before decoding the rest.
type Base struct {
	Type string `json:"type"`
}

// Marshal encodes a message as a JSON object tagged with its type.
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	return json.Marshal(m.stamp())
}

// Unmarshal decodes a JSON message by its type tag.
func Unmarshal(data []byte) (Message, error) {
	var base Base
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m Message
	var err error
	switch base.Type {
	case TypeWelcome:
		m, err = decodeAs[Welcome](data)
	case TypeSpawnPlatform:
		m, err = decodeAs[SpawnPlatform](data)
	case TypeDespawnPlatform:
		m, err = decodeAs[DespawnPlatform](data)
	case TypeSyncPositions:
		var s SyncPositions
		if s, err = decodeAs[SyncPositions](data); err == nil {
			err = s.check()
		}
		m = s
	case TypeSpawnBridge:
		m, err = decodeAs[SpawnBridge](data)
	case TypeDespawnBridge:
		m, err = decodeAs[DespawnBridge](data)
	case TypeSnapshot:
		m, err = decodeAs[Snapshot](data)
	case TypeSetAnchor:
		m, err = decodeAs[SetAnchor](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeAs[T Message](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

func (m SyncPositions) check() error {
	if len(m.Positions) != len(m.IDs) {
		return fmt.Errorf("%w: sync_positions has %d ids and %d positions", ErrMalformed, len(m.IDs), len(m.Positions))
	}
	if len(m.Vels) != 0 && len(m.Vels) != len(m.IDs) {
		return fmt.Errorf("%w: sync_positions has %d ids and %d vels", ErrMalformed, len(m.IDs), len(m.Vels))
	}
	return nil
}

// Validate checks raw JSON against the embedded message schema. It is
// stricter than Unmarshal and is applied to untrusted inbound frames.
func Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Frame is one transport frame. Binary frames carry compressed JSON.
type Frame struct {
	Binary bool
	Data   []byte
}

// Codec turns messages into frames. Snapshots larger than CompressAbove
// bytes go out as compressed binary frames; everything else is plain JSON
// text. A Codec is safe for concurrent use.
type Codec struct {
	CompressAbove int // 0 disables compression

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec creates a codec.
func NewCodec(compressAbove int) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("protocol: cannot create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedFrame))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("protocol: cannot create decoder: %w", err)
	}
	return &Codec{CompressAbove: compressAbove, enc: enc, dec: dec}, nil
}

// Encode produces the frame for a message.
func (c *Codec) Encode(m Message) (Frame, error) {
	data, err := Marshal(m)
	if err != nil {
		return Frame{}, err
	}
	if m.Kind() != TypeSnapshot || c.CompressAbove <= 0 || len(data) <= c.CompressAbove {
		return Frame{Data: data}, nil
	}

	out := make([]byte, 1, len(data)/4+1)
	out[0] = compressedMarker
	return Frame{Binary: true, Data: c.enc.EncodeAll(data, out)}, nil
}

// Decode parses a frame.
func (c *Codec) Decode(f Frame) (Message, error) {
	if !f.Binary {
		return Unmarshal(f.Data)
	}
	if len(f.Data) == 0 || f.Data[0] != compressedMarker {
		return nil, fmt.Errorf("%w: unknown binary frame", ErrMalformed)
	}
	data, err := c.dec.DecodeAll(f.Data[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Unmarshal(data)
}

// Close releases the compressor resources.
func (c *Codec) Close() {
	_ = c.enc.Close()
	c.dec.Close()
}
