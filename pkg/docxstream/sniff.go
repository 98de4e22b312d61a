package docxstream

import (
	"bytes"
	"encoding/binary"
)

const (
	minImageHeaderLen = 24

	jpegFirstSegment = 2
	jpegMinSegment   = 9
	jpegSOFFirst     = 0xC0
	jpegSOFLast      = 0xCF
	jpegMarkerDHT    = 0xC4 // Define Huffman Table
	jpegMarkerJPG    = 0xC8 // JPG extension
	jpegMarkerDAC    = 0xCC // Define Arithmetic Coding
	jpegMarkerPrefix = 0xFF
)

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G'}
	jpegSOI      = []byte{0xFF, 0xD8}
	pngIHDR      = []byte("IHDR")
)

// Dimensions reads the pixel width and height from a PNG or JPEG header
// without decoding the image.
func Dimensions(data []byte) (width, height int, err error) {
	if len(data) < minImageHeaderLen {
		return 0, 0, &SniffError{Err: ErrTooShort}
	}

	switch {
	case bytes.HasPrefix(data, pngSignature):
		return pngDimensions(data)
	case bytes.HasPrefix(data, jpegSOI):
		return jpegDimensions(data)
	}
	return 0, 0, &SniffError{Err: ErrUnknownFormat}
}

// pngDimensions reads the IHDR chunk, which always directly follows the
// 8-byte signature and 4-byte chunk length.
func pngDimensions(data []byte) (int, int, error) {
	if !bytes.Equal(data[12:16], pngIHDR) {
		return 0, 0, &SniffError{Format: "png", Err: ErrInvalidPNGHeader}
	}
	width := binary.BigEndian.Uint32(data[16:20])
	height := binary.BigEndian.Uint32(data[20:24])
	return int(width), int(height), nil
}

// jpegDimensions walks the segment chain looking for a start-of-frame marker.
func jpegDimensions(data []byte) (int, int, error) {
	offset := jpegFirstSegment
	for offset+jpegMinSegment < len(data) {
		if data[offset] != jpegMarkerPrefix {
			return 0, 0, &SniffError{Format: "jpeg", Err: ErrInvalidJPEGMarker}
		}

		marker := data[offset+1]
		segmentLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))

		if isSOFMarker(marker) {
			height := binary.BigEndian.Uint16(data[offset+5 : offset+7])
			width := binary.BigEndian.Uint16(data[offset+7 : offset+9])
			return int(width), int(height), nil
		}

		offset += segmentLen + 2
	}
	return 0, 0, &SniffError{Format: "jpeg", Err: ErrNoSOFMarker}
}

// isSOFMarker reports whether marker is a frame header. 0xC4, 0xC8 and 0xCC
// sit inside the SOF range but are table and extension markers.
func isSOFMarker(marker byte) bool {
	if marker < jpegSOFFirst || marker > jpegSOFLast {
		return false
	}
	return marker != jpegMarkerDHT && marker != jpegMarkerJPG && marker != jpegMarkerDAC
}
