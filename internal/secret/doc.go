// Package secret wraps typed values in session ciphertext.
//
// A SecretValue[T] never holds plaintext. Its JSON form is
//
//	{"portseal_secret":1,"data":"<base64 CBOR message>"}
//
// (plus "codec" when the plaintext was not JSON-encoded), which lets a
// document carry encrypted and plain values side by side. EncryptPorts and
// DecryptPorts apply this to the "vertex.port" values of a workflow input.
package secret
