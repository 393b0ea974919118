package channel

import (
	"fmt"
	"strings"
)

const plaintextHeaderSize = 4 + 1 // timestamp(4) | flags(1)

// Message is a decoded GRP_TXT plaintext: timestamp(4) | flags(1) |
// ascii_content, where content is optionally split on the first ": " into
// sender and text.
type Message struct {
	Timestamp uint32
	Flags     byte
	Sender    string
	Text      string
}

// EncodePlaintext builds the canonical "<sender>: <text>\0" plaintext body
// that Encrypt operates on.
func EncodePlaintext(timestamp uint32, flags byte, sender, text string) []byte {
	out := make([]byte, 0, plaintextHeaderSize+len(sender)+2+len(text)+1)
	out = append(out, byte(timestamp), byte(timestamp>>8), byte(timestamp>>16), byte(timestamp>>24))
	out = append(out, flags)
	if sender != "" {
		out = append(out, sender...)
		out = append(out, ':', ' ')
	}
	out = append(out, text...)
	out = append(out, 0)
	return out
}

// ParseMessage parses a decrypted GRP_TXT plaintext.
func ParseMessage(plaintext []byte) (Message, error) {
	if len(plaintext) < plaintextHeaderSize {
		return Message{}, fmt.Errorf("channel: plaintext %d bytes below minimum %d", len(plaintext), plaintextHeaderSize)
	}
	ts := uint32(plaintext[0]) | uint32(plaintext[1])<<8 | uint32(plaintext[2])<<16 | uint32(plaintext[3])<<24
	flags := plaintext[4]
	content := string(plaintext[plaintextHeaderSize:])

	m := Message{Timestamp: ts, Flags: flags}
	if idx := strings.Index(content, ": "); idx >= 0 {
		m.Sender = content[:idx]
		m.Text = content[idx+2:]
	} else {
		m.Text = content
	}
	return m, nil
}
