// Package channel implements MeshCore channel cryptography: key
// derivation, the channel-hash demultiplexer, and AES-128-ECB encryption
// with truncated HMAC-SHA256 authentication.
package channel

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
)

const (
	KeySize   = 16
	BlockSize = 16
	MacSize   = 2
)

var (
	ErrMacMismatch = errors.New("channel: mac mismatch")
	ErrMisaligned  = errors.New("channel: ciphertext not a positive multiple of block size")
	ErrCryptoFail  = errors.New("channel: crypto operation failed")
)

// PublicKey is the well-known 16-byte key for the "#Public" channel.
var PublicKey = [KeySize]byte{
	0x8b, 0x33, 0x87, 0xe9, 0xc5, 0xcd, 0xea, 0x6a,
	0xc9, 0xe5, 0xed, 0xba, 0xa1, 0x15, 0xcd, 0x72,
}

// DeriveKey returns the 16-byte symmetric key for a channel identified by
// name. "#Public" always maps to the embedded well-known key; anything
// else is SHA-256(passwordOrName)[0:16].
func DeriveKey(name string) [KeySize]byte {
	if name == "#Public" {
		return PublicKey
	}
	sum := sha256.Sum256([]byte(name))
	var key [KeySize]byte
	copy(key[:], sum[:KeySize])
	return key
}

// Hash returns the channel-hash demultiplexer byte: the first byte of
// SHA-256(key).
func Hash(key [KeySize]byte) byte {
	sum := sha256.Sum256(key[:])
	return sum[0]
}

func expandedHMACKey(key [KeySize]byte) []byte {
	expanded := make([]byte, KeySize*2)
	copy(expanded, key[:])
	return expanded
}

func macOf(hmacKey, ciphertext []byte) [MacSize]byte {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ciphertext)
	sum := mac.Sum(nil)
	var out [MacSize]byte
	copy(out[:], sum[:MacSize])
	return out
}

func ecbCrypt(key [KeySize]byte, in []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("channel: %w: %v", ErrCryptoFail, err)
	}
	out := make([]byte, len(in))
	for off := 0; off < len(in); off += BlockSize {
		chunk := in[off : off+BlockSize]
		dst := out[off : off+BlockSize]
		if encrypt {
			block.Encrypt(dst, chunk)
		} else {
			block.Decrypt(dst, chunk)
		}
	}
	return out, nil
}

// Encrypt zero-pads plaintext to a 16-byte multiple (minimum one block),
// AES-128-ECB encrypts it, and returns the 2-byte truncated HMAC followed
// by the ciphertext.
func Encrypt(key [KeySize]byte, plaintext []byte) (mac [MacSize]byte, ciphertext []byte, err error) {
	padded := make([]byte, padLen(len(plaintext)))
	copy(padded, plaintext)

	ciphertext, err = ecbCrypt(key, padded, true)
	if err != nil {
		return mac, nil, err
	}
	mac = macOf(expandedHMACKey(key), ciphertext)
	return mac, ciphertext, nil
}

func padLen(n int) int {
	if n == 0 {
		return BlockSize
	}
	rem := n % BlockSize
	if rem == 0 {
		return n
	}
	return n + (BlockSize - rem)
}

// Decrypt verifies mac over ciphertext (trying the expanded key first,
// then the legacy 16-byte raw key once on mismatch), AES-128-ECB decrypts,
// and strips trailing zero padding.
func Decrypt(key [KeySize]byte, mac [MacSize]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("channel: ciphertext length %d: %w", len(ciphertext), ErrMisaligned)
	}

	expected := macOf(expandedHMACKey(key), ciphertext)
	if subtle.ConstantTimeCompare(expected[:], mac[:]) != 1 {
		legacy := macOf(key[:], ciphertext)
		if subtle.ConstantTimeCompare(legacy[:], mac[:]) != 1 {
			return nil, ErrMacMismatch
		}
	}

	plain, err := ecbCrypt(key, ciphertext, false)
	if err != nil {
		return nil, err
	}

	// Strip trailing zero padding.
	end := len(plain)
	for end > 0 && plain[end-1] == 0 {
		end--
	}
	return plain[:end], nil
}
