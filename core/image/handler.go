// Package image implements segment-level parsing, metadata decoding and
// lossless stripping for JPEG, PNG, TIFF and WebP.
package image

import (
	"fmt"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

var handlers = map[core.Format]core.Handler{
	core.FmtJPEG: jpegHandler{},
	core.FmtPNG:  pngHandler{},
	core.FmtTIFF: tiffHandler{},
	core.FmtWebP: webpHandler{},
}

// For returns the handler for a sniffed format.
func For(f core.Format) (core.Handler, error) {
	h, ok := handlers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, f)
	}
	return h, nil
}

// Handlers returns every handler in display order.
func Handlers() []core.Handler {
	out := make([]core.Handler, 0, len(core.Formats))
	for _, f := range core.Formats {
		out = append(out, handlers[f])
	}
	return out
}

var formatInfo = map[core.Format]core.FormatInfo{
	core.FmtJPEG: {
		Name:       "JPEG",
		Extensions: []string{".jpg", ".jpeg"},
		MIMETypes:  []string{"image/jpeg"},
		Notes:      "EXIF, XMP and IPTC APP segments plus COM. ICC and Adobe segments are kept.",
	},
	core.FmtPNG: {
		Name:       "PNG",
		Extensions: []string{".png"},
		MIMETypes:  []string{"image/png"},
		Notes:      "eXIf, tEXt, zTXt, iTXt and tIME chunks. CRCs are verified.",
	},
	core.FmtTIFF: {
		Name:       "TIFF",
		Extensions: []string{".tif", ".tiff"},
		MIMETypes:  []string{"image/tiff"},
		Notes:      "Clean rebuilds the IFD chain with baseline structural tags only. SubIFDs are not re-linked.",
	},
	core.FmtWebP: {
		Name:       "WebP",
		Extensions: []string{".webp"},
		MIMETypes:  []string{"image/webp"},
		Notes:      "EXIF and XMP chunks in the RIFF container. VP8X flags are patched on clean.",
	},
}
