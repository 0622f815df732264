// Package payload encrypts and decrypts values of workflow input documents
// with stored sessions.
//
// A document maps vertex names to port names to JSON values. Each handle
// "vertex.port" selects one value, which is replaced by a SecretValue
// envelope on encrypt and restored on decrypt. After encrypting, the sender's
// outgoing key cache is committed: a sealed document cannot be read back by
// its author, only by the peer.
package payload
