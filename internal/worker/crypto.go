package worker

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

const aesBlockSize = 16

// checkInlineKey rejects keys larger than maxInlineKey before they reach
// aes.NewCipher or hmac.New, since script-submitted keys are otherwise
// unbounded and aes.NewCipher's own error message doesn't name the caller.
func checkInlineKey(key []byte) error {
	if len(key) == 0 || len(key) > maxInlineKey {
		return fmt.Errorf("worker: key length %d exceeds %d byte limit", len(key), maxInlineKey)
	}
	return nil
}

// aesECBEncrypt zero-pads data to a 16-byte multiple (minimum one block)
// and AES-128-ECB encrypts it block-by-block, matching the padding
// convention used by the channel package's GRP_TXT encryption.
func aesECBEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes_encrypt: %w", err)
	}
	padded := data
	if rem := len(data) % aesBlockSize; rem != 0 || len(data) == 0 {
		n := len(data)
		if rem != 0 {
			n += aesBlockSize - rem
		} else if n == 0 {
			n = aesBlockSize
		}
		padded = make([]byte, n)
		copy(padded, data)
	}
	out := make([]byte, len(padded))
	for off := 0; off < len(padded); off += aesBlockSize {
		block.Encrypt(out[off:off+aesBlockSize], padded[off:off+aesBlockSize])
	}
	return out, nil
}

// aesECBDecrypt requires 16-byte-aligned input and returns the decrypted
// bytes unmodified (no zero-stripping; the caller knows its own framing).
func aesECBDecrypt(key, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aesBlockSize != 0 {
		return nil, fmt.Errorf("aes_decrypt: input length %d is not a positive multiple of %d", len(data), aesBlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes_decrypt: %w", err)
	}
	out := make([]byte, len(data))
	for off := 0; off < len(data); off += aesBlockSize {
		block.Decrypt(out[off:off+aesBlockSize], data[off:off+aesBlockSize])
	}
	return out, nil
}

func hmacSHA256(key, data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}
