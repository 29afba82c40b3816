package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Format enumerates the supported container formats.
type Format string

const (
	FmtJPEG    Format = "jpeg"
	FmtPNG     Format = "png"
	FmtTIFF    Format = "tiff"
	FmtWebP    Format = "webp"
	FmtUnknown Format = "unknown"
)

// Formats lists every supported format in display order.
var Formats = []Format{FmtJPEG, FmtPNG, FmtTIFF, FmtWebP}

// SniffLen is the number of leading bytes Detect needs at most.
const SniffLen = 16

var (
	magicJPEG   = []byte{0xFF, 0xD8, 0xFF}
	magicPNG    = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	magicTIFFLE = []byte{0x49, 0x49, 0x2A, 0x00}
	magicTIFFBE = []byte{0x4D, 0x4D, 0x00, 0x2A}
)

// Detect identifies the container format from the leading bytes of a file.
// It never falls back to the file name.
func Detect(prefix []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(prefix, magicJPEG):
		return FmtJPEG, nil
	case bytes.HasPrefix(prefix, magicPNG):
		return FmtPNG, nil
	case bytes.HasPrefix(prefix, magicTIFFLE), bytes.HasPrefix(prefix, magicTIFFBE):
		return FmtTIFF, nil
	// WebP: RIFF????WEBP
	case len(prefix) >= 12 && bytes.Equal(prefix[0:4], []byte("RIFF")) && bytes.Equal(prefix[8:12], []byte("WEBP")):
		return FmtWebP, nil
	}
	return FmtUnknown, fmt.Errorf("%w: unrecognised signature", ErrUnsupportedFormat)
}

// DetectFile reads at most SniffLen bytes of path and calls Detect.
func DetectFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FmtUnknown, fmt.Errorf("open %s: %w: %v", path, ErrIOFailure, err)
	}
	defer f.Close()

	buf := make([]byte, SniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FmtUnknown, fmt.Errorf("read %s: %w: %v", path, ErrIOFailure, err)
	}
	return Detect(buf[:n])
}
