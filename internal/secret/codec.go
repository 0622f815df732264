package secret

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Codec turns a value into plaintext bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// Built-in codecs. JSON is the default.
var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(b []byte, v any) error { return cbor.Unmarshal(b, v) }

func codecByName(name string) (Codec, bool) {
	switch name {
	case "", JSON.Name():
		return JSON, true
	case CBOR.Name():
		return CBOR, true
	}
	return nil, false
}
