// Package txgen provides transaction-id generation strategies for
// correlating outbound requests with their eventual ack or response.
package txgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique transaction identifiers. Implementations must be
// safe for concurrent use; the only contract is uniqueness with high
// probability over the capacity window of the bounded rendezvous maps that
// key on the generated value.
type Generator interface {
	Generate() string
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Random generates 12-character alphanumeric transaction ids. It is the
// default strategy when none is supplied to Connect.
type Random struct{}

func (Random) Generate() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on the standard reader does not fail in practice;
		// panicking here would surface a broken entropy source immediately
		// rather than silently handing out colliding transaction ids.
		panic("txgen: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return string(buf)
}

// UUID generates RFC 4122 version 4 transaction ids.
type UUID struct{}

func (UUID) Generate() string {
	return uuid.NewString()
}
