// Package codec provides pluggable value serialization for shellcache.
// The manager stores responses through a Codec; JSON is the default, with
// CBOR, Msgpack and Protobuf available for tighter payloads.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
