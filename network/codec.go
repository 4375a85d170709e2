package network

// Codec converts sync messages to and from their wire form.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}
