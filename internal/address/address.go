// Package address derives and validates the cryptographic IPv6 addresses
// used to name every participant in the mesh.
//
// An address is not assigned; it is computed. Every node's 16-byte IPv6 is
// the low 120 bits of the double SHA-512 of its 32-byte Curve25519 public
// key, with the first byte forced to 0xfc. Because the byte is forced, every
// public key derives an address with the mesh prefix; no key is rejected
// on that ground.
package address

import (
	"bytes"
	"crypto/sha512"
	"fmt"
)

// PublicKeySize is the length in bytes of a Curve25519 public key.
const PublicKeySize = 32

// IP6Size is the length in bytes of a mesh IPv6 address.
const IP6Size = 16

// prefixByte is the fixed first byte of every valid mesh address.
const prefixByte = 0xfc

// PublicKey is a node's long-lived Curve25519 public key.
type PublicKey [PublicKeySize]byte

// IsZero reports whether the key is all zeroes (i.e. unknown).
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// IP6 is a mesh-routable IPv6 address: 16 bytes, first byte 0xfc.
type IP6 [IP6Size]byte

// IsZero reports whether the address is all zeroes.
func (a IP6) IsZero() bool {
	return a == IP6{}
}

// String renders the address in the usual colon-hex IPv6 notation.
func (a IP6) String() string {
	return fmt.Sprintf("%x:%x:%x:%x:%x:%x:%x:%x",
		uint16(a[0])<<8|uint16(a[1]),
		uint16(a[2])<<8|uint16(a[3]),
		uint16(a[4])<<8|uint16(a[5]),
		uint16(a[6])<<8|uint16(a[7]),
		uint16(a[8])<<8|uint16(a[9]),
		uint16(a[10])<<8|uint16(a[11]),
		uint16(a[12])<<8|uint16(a[13]),
		uint16(a[14])<<8|uint16(a[15]),
	)
}

// Address is the full identity of a mesh node as carried on a route header:
// its computed IPv6, its public key, the protocol version it last
// advertised (0 if unknown), and the switch label of the path to reach it.
type Address struct {
	IP6     IP6
	Key     PublicKey
	Version uint32
	Label   uint64
}

// ForPublicKey computes the mesh IPv6 for a public key. The computation
// cannot fail; whether the result is usable is answered by HasValidPrefix.
func ForPublicKey(key PublicKey) IP6 {
	h1 := sha512.Sum512(key[:])
	h2 := sha512.Sum512(h1[:])

	var ip6 IP6
	copy(ip6[:], h2[:IP6Size])
	ip6[0] = prefixByte
	return ip6
}

// HasValidPrefix reports whether ip6 starts with the mesh prefix byte.
// A raw AddressCalc result always satisfies this (the byte is forced); this
// check matters for *untrusted* peer-supplied keys, where the caller wants
// to know whether the claimed key even looks like a mesh key before trusting
// the derivation relationship.
func HasValidPrefix(ip6 IP6) bool {
	return ip6[0] == prefixByte
}

// Matches reports whether ip6 is exactly the address derived from key. This
// is the invariant check: for any session whose found-key latch is set,
// Matches(session.HerIP6, session.HerPublicKey) must hold.
func Matches(ip6 IP6, key PublicKey) bool {
	want := ForPublicKey(key)
	return bytes.Equal(ip6[:], want[:])
}
