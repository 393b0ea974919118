package channel

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestPublicChannelHashIsStable(t *testing.T) {
	sum := sha256.Sum256(PublicKey[:])
	if Hash(PublicKey) != sum[0] {
		t.Fatalf("Hash(#Public) = %x, want %x", Hash(PublicKey), sum[0])
	}
}

func TestHashMatchesSHA256FirstByte(t *testing.T) {
	key := DeriveKey("hello")
	sum := sha256.Sum256(key[:])
	if Hash(key) != sum[0] {
		t.Fatalf("Hash mismatch: got %x want %x", Hash(key), sum[0])
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("hello")
	plaintext := EncodePlaintext(1, 0, "Alice", "hi")

	mac, ciphertext, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(key, mac, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	// Encrypt/Decrypt round-trips modulo zero padding, so compare the
	// zero-stripped forms.
	wantEnd := len(plaintext)
	for wantEnd > 0 && plaintext[wantEnd-1] == 0 {
		wantEnd--
	}
	if !bytes.Equal(got, plaintext[:wantEnd]) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext[:wantEnd])
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	helloKey := DeriveKey("hello")
	worldKey := DeriveKey("world")

	plaintext := make([]byte, 5, 5+9+1)
	plaintext = append(plaintext, "Alice: hi"...)
	plaintext = append(plaintext, 0)

	mac, ciphertext, err := Encrypt(helloKey, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(worldKey, mac, ciphertext); !errors.Is(err, ErrMacMismatch) {
		t.Fatalf("want ErrMacMismatch under wrong key, got %v", err)
	}

	got, err := Decrypt(helloKey, mac, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt under correct key: %v", err)
	}
	// Decrypt strips trailing zero bytes, so the NUL terminator is gone.
	wantEnd := len(plaintext)
	for wantEnd > 0 && plaintext[wantEnd-1] == 0 {
		wantEnd--
	}
	if !bytes.Equal(got, plaintext[:wantEnd]) {
		t.Fatalf("got %q want %q", got, plaintext[:wantEnd])
	}
}

func TestDecryptAcceptsLegacyRawKeyMAC(t *testing.T) {
	key := DeriveKey("legacy-channel")
	plaintext := EncodePlaintext(0, 0, "Bob", "test")
	padded := make([]byte, padLen(len(plaintext)))
	copy(padded, plaintext)
	ciphertext, err := ecbCrypt(key, padded, true)
	if err != nil {
		t.Fatalf("ecbCrypt: %v", err)
	}
	legacyMac := macOf(key[:], ciphertext)

	got, err := Decrypt(key, legacyMac, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt with legacy mac: %v", err)
	}
	end := len(plaintext)
	for end > 0 && plaintext[end-1] == 0 {
		end--
	}
	if !bytes.Equal(got, plaintext[:end]) {
		t.Fatalf("got %q want %q", got, plaintext[:end])
	}
}

func TestDecryptRejectsMisalignedCiphertext(t *testing.T) {
	key := DeriveKey("x")
	if _, err := Decrypt(key, [MacSize]byte{}, make([]byte, 5)); !errors.Is(err, ErrMisaligned) {
		t.Fatalf("want ErrMisaligned, got %v", err)
	}
}

func TestParseMessageSplitsSenderAndText(t *testing.T) {
	plaintext := EncodePlaintext(42, 0, "Alice", "hi")
	msg, err := ParseMessage(plaintext)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Timestamp != 42 || msg.Sender != "Alice" || msg.Text != "hi\x00" {
		// Text retains the trailing NUL terminator from the wire form;
		// callers that need a clean string trim it.
		t.Fatalf("unexpected parse: %+v", msg)
	}
}

func TestParseMessageWithoutSenderSeparator(t *testing.T) {
	plaintext := EncodePlaintext(0, 0, "", "just text")
	msg, err := ParseMessage(plaintext)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Sender != "" || msg.Text != "just text\x00" {
		t.Fatalf("unexpected parse: %+v", msg)
	}
}
