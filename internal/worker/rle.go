package worker

import "fmt"

const rleSentinel = 0xFF

// indexedTileSize is the expected input size for RLE_READ_RGB565: a
// 256x256 tile of 3-bit palette indices (24576 bytes, spec §4.7.1).
const indexedTileSize = 24576

// tilePixels is the decoded RGB565 output size: 256x256 pixels, 2 bytes each.
const tilePixels = 256 * 256 * 2

// RLEDecode runs the single-pass RLE decoder: 0xFF introduces a run
// (count, value); every other byte is literal.
func RLEDecode(data []byte) []byte {
	out := make([]byte, 0, indexedTileSize+4096)
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b == rleSentinel && i+2 < len(data) {
			count := data[i+1]
			value := data[i+2]
			for n := 0; n < int(count); n++ {
				out = append(out, value)
			}
			i += 2
			continue
		}
		out = append(out, b)
	}
	return out
}

// UnpackRGB565 expands an RLE-decoded, 3-bit-per-pixel palette-indexed
// tile into a full RGB565 framebuffer using an 8-entry palette. indexed
// must be exactly indexedTileSize bytes (spec §4.7.2).
func UnpackRGB565(indexed []byte, palette [8]uint16) ([]byte, error) {
	if len(indexed) != indexedTileSize {
		return nil, fmt.Errorf("worker: indexed tile is %d bytes, want exactly %d", len(indexed), indexedTileSize)
	}

	out := make([]byte, 0, tilePixels)
	emit := func(idx byte) {
		px := palette[idx&0x07]
		out = append(out, byte(px), byte(px>>8))
	}

	for i := 0; i+2 < len(indexed); i += 3 {
		b0, b1, b2 := indexed[i], indexed[i+1], indexed[i+2]

		idx0 := b0 & 0x07
		idx1 := (b0 >> 3) & 0x07
		idx2 := ((b0 >> 6) & 0x03) | ((b1 & 0x01) << 2)
		idx3 := (b1 >> 1) & 0x07
		idx4 := (b1 >> 4) & 0x07
		idx5 := ((b1 >> 7) & 0x01) | ((b2 & 0x03) << 1)
		idx6 := (b2 >> 2) & 0x07
		idx7 := (b2 >> 5) & 0x07

		emit(idx0)
		emit(idx1)
		emit(idx2)
		emit(idx3)
		emit(idx4)
		emit(idx5)
		emit(idx6)
		emit(idx7)
	}
	return out, nil
}
