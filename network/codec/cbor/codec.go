package cbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/finalitylabs/blocksync/network/codec"
)

// Codec encodes sync messages as a code byte followed by the cbor encoding
// of the message.
type Codec struct {
	enc            cbor.EncMode
	dec            cbor.DecMode
	maxMessageSize int
}

type Option func(*Codec)

// WithMaxMessageSize sets the limit on the encoded size of a message, code
// byte included.
func WithMaxMessageSize(size int) Option {
	return func(c *Codec) {
		c.maxMessageSize = size
	}
}

// NewCodec returns a cbor codec. Decoding limits the size of messages and
// arrays so a malicious peer cannot make us allocate arbitrary amounts of
// memory.
func NewCodec(opts ...Option) *Codec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create cbor encoder: %s", err))
	}
	dec, err := cbor.DecOptions{
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 10,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("could not create cbor decoder: %s", err))
	}
	c := &Codec{
		enc:            enc,
		dec:            dec,
		maxMessageSize: codec.DefaultMaxMessageSize,
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// MaxMessageSize returns the limit on the encoded size of a message.
func (c *Codec) MaxMessageSize() int {
	return c.maxMessageSize
}

// Encode encodes the message into its wire form. Messages above the size
// limit are rejected with a MessageTooLargeError.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	code, what, err := codec.MessageCodeFromInterface(v)
	if err != nil {
		return nil, fmt.Errorf("could not determine envelope code: %w", err)
	}

	payload, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode cbor payload of type %s: %w", what, err)
	}
	if len(payload)+1 > c.maxMessageSize {
		return nil, fmt.Errorf("could not encode %s: %w", what, codec.MessageTooLargeError{Size: len(payload) + 1, Limit: c.maxMessageSize})
	}

	data := make([]byte, 0, len(payload)+1)
	data = append(data, code)
	data = append(data, payload...)
	return data, nil
}

// Decode decodes a message from its wire form. The returned value is a
// pointer to one of the message types of the messages package.
func (c *Codec) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, codec.ErrInvalidEncoding
	}
	if len(data) > c.maxMessageSize {
		return nil, codec.MessageTooLargeError{Size: len(data), Limit: c.maxMessageSize}
	}

	code := data[0]
	v, what, err := codec.InterfaceFromMessageCode(code)
	if err != nil {
		return nil, err
	}

	err = c.dec.Unmarshal(data[1:], v)
	if err != nil {
		return nil, codec.NewMalformedMessageError(code, what, err)
	}

	return v, nil
}
