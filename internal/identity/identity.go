// Package identity implements the node's Ed25519 keypair lifecycle,
// signing, verification, and X25519 key agreement derived from that same
// Ed25519 seed.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// Sizes that must match cross-implementations (spec §6).
const (
	SeedSize      = 32
	PubKeySize    = 32
	SignatureSize = 64
)

var (
	// ErrKeyConversion is returned when a peer's Ed25519 public key
	// cannot be converted to a valid Curve25519 point.
	ErrKeyConversion = errors.New("identity: key conversion failed")
	// ErrCryptoFail covers X25519 scalar multiplication producing a
	// low-order/degenerate result.
	ErrCryptoFail = errors.New("identity: crypto operation failed")
)

// Identity owns the node's private key material exclusively. The zero
// value is not usable; construct with Generate or Load.
type Identity struct {
	seed   [SeedSize]byte
	priv   ed25519.PrivateKey
	pub    [PubKeySize]byte
	name   string
}

// Generate draws a fresh random seed and derives the keypair.
func Generate(name string) (*Identity, error) {
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: reading random seed: %w", err)
	}
	id, err := fromSeed(seed, name)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// Load reconstructs an Identity from persisted bytes. It accepts either a
// 32-byte seed or a 64-byte seed||derived-pub blob, per spec §9 Open
// Questions; only the first 32 bytes are ever used.
func Load(data []byte, name string) (*Identity, error) {
	if len(data) != SeedSize && len(data) != SeedSize*2 {
		return nil, fmt.Errorf("identity: persisted key material has unexpected length %d", len(data))
	}
	return fromSeed(data[:SeedSize], name)
}

func fromSeed(seed []byte, name string) (*Identity, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	id := &Identity{priv: priv, name: name}
	copy(id.seed[:], seed)
	copy(id.pub[:], pub)
	return id, nil
}

// Seed returns the 32-byte seed that must be persisted to reconstruct this
// identity via Load.
func (id *Identity) Seed() [SeedSize]byte { return id.seed }

// PublicKey returns the 32-byte Ed25519 public key.
func (id *Identity) PublicKey() [PubKeySize]byte { return id.pub }

// Name returns the node's display name.
func (id *Identity) Name() string { return id.name }

// SetName updates the node's display name without touching key material.
func (id *Identity) SetName(name string) { id.name = name }

// PathHash returns the node's 1-byte identifier: the first byte of its
// public key.
func (id *Identity) PathHash() byte { return id.pub[0] }

// Sign produces a deterministic Ed25519 signature over msg.
func (id *Identity) Sign(msg []byte) [SignatureSize]byte {
	var sig [SignatureSize]byte
	copy(sig[:], ed25519.Sign(id.priv, msg))
	return sig
}

// Verify checks an Ed25519 signature against an arbitrary public key; it
// does not require an Identity instance to be constructed for the signer.
func Verify(msg []byte, sig [SignatureSize]byte, pubKey [PubKeySize]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pubKey[:]), msg, sig[:])
}

// Zero overwrites all private material in place. Call on drop and on every
// failure path that might otherwise leave key material live in memory.
func (id *Identity) Zero() {
	for i := range id.seed {
		id.seed[i] = 0
	}
	for i := range id.priv {
		id.priv[i] = 0
	}
}

// Reset discards the current keypair and generates a new one, persisting
// is the caller's responsibility (via the key-value store).
func (id *Identity) Reset(name string) error {
	id.Zero()
	fresh, err := Generate(name)
	if err != nil {
		return err
	}
	*id = *fresh
	return nil
}

// DeriveShared computes the X25519 shared secret between id's private key
// material and a peer's Ed25519 public key. Both sides of a conversation
// derive the same secret regardless of which identity is "ours": X25519
// scalar multiplication is commutative over the shared basepoint.
func (id *Identity) DeriveShared(theirEd25519Pub [PubKeySize]byte) ([32]byte, error) {
	var out [32]byte

	scalar := clampedX25519Scalar(id.seed[:])
	defer zero(scalar[:])

	theirX, err := ed25519PubToX25519(theirEd25519Pub)
	if err != nil {
		return out, fmt.Errorf("identity: %w: %v", ErrKeyConversion, err)
	}

	secret, err := curve25519.X25519(scalar[:], theirX[:])
	if err != nil {
		return out, fmt.Errorf("identity: %w: %v", ErrCryptoFail, err)
	}
	copy(out[:], secret)
	return out, nil
}

// clampedX25519Scalar derives an X25519 scalar from an Ed25519 seed by
// hashing with SHA-512 and taking the first 32 bytes, then applying the
// standard RFC 7748 clamp.
func clampedX25519Scalar(seed []byte) [32]byte {
	h := sha512.Sum512(seed)
	var s [32]byte
	copy(s[:], h[:32])
	s[0] &= 0xF8  // clear bits 0,1,2
	s[31] &= 0x7F // clear bit 7
	s[31] |= 0x40 // set bit 6
	return s
}

// ed25519PubToX25519 converts an Ed25519 public key (an Edwards curve
// point's y-coordinate with a sign bit) into the corresponding Curve25519
// u-coordinate via the birational map u = (1+y)/(1-y), computed in GF(2^255-19)
// using filippo.io/edwards25519's field/point arithmetic rather than
// hand-rolled modular inverses.
func ed25519PubToX25519(pub [PubKeySize]byte) ([32]byte, error) {
	var out [32]byte
	p, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return out, fmt.Errorf("invalid Edwards point: %w", err)
	}
	// BytesMontgomery performs exactly this birational map internally.
	u := p.BytesMontgomery()
	copy(out[:], u)
	return out, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
