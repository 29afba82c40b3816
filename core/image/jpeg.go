package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

type jpegHandler struct{}

func (jpegHandler) Info() core.FormatInfo { return formatInfo[core.FmtJPEG] }

// JPEG marker bytes.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerDQT  = 0xDB
	markerDRI  = 0xDD
	markerDHT  = 0xC4
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
	markerAPPD = 0xED
	markerAPPE = 0xEE
	markerCOM  = 0xFE
	markerTEM  = 0x01
)

var (
	sigEXIF        = []byte("Exif\x00\x00")
	sigXMP         = []byte("http://ns.adobe.com/xap/1.0/\x00")
	sigXMPExt      = []byte("http://ns.adobe.com/xmp/extension/\x00")
	sigPhotoshop   = []byte("Photoshop 3.0\x00")
	sigICC         = []byte("ICC_PROFILE\x00")
	extendedHeader = 32 + 4 + 4 // GUID, full length, chunk offset
)

func (jpegHandler) Parse(data []byte) (*core.Container, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("jpeg: %w: missing SOI", core.ErrTruncatedData)
	}
	if data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("jpeg: %w: missing SOI", core.ErrCorruptContainer)
	}
	c := &core.Container{Format: core.FmtJPEG}
	c.Segments = append(c.Segments, core.Segment{Kind: core.Structural, Name: "SOI", Raw: data[:2]})

	i := 2
	for {
		start := i
		if i >= len(data) {
			return nil, fmt.Errorf("jpeg: %w: end of file before SOS", core.ErrTruncatedData)
		}
		if data[i] != 0xFF {
			return nil, fmt.Errorf("jpeg: %w: expected marker at offset %d, found 0x%02x", core.ErrCorruptContainer, i, data[i])
		}
		// Fill bytes belong to the following segment.
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			return nil, fmt.Errorf("jpeg: %w: end of file inside marker", core.ErrTruncatedData)
		}
		marker := data[i]
		i++

		switch {
		case marker == 0x00:
			return nil, fmt.Errorf("jpeg: %w: stuffed byte at offset %d outside scan", core.ErrCorruptContainer, i-2)
		case marker == markerEOI:
			return nil, fmt.Errorf("jpeg: %w: EOI before SOS", core.ErrCorruptContainer)
		case marker == markerTEM, marker == markerSOI, marker >= 0xD0 && marker <= 0xD7:
			// Standalone markers carry no length.
			c.Segments = append(c.Segments, core.Segment{
				Kind: core.Structural, Name: markerName(marker), Offset: int64(start), Raw: data[start:i],
			})
			continue
		}

		if i+2 > len(data) {
			return nil, fmt.Errorf("jpeg: %w: segment length at offset %d", core.ErrTruncatedData, i)
		}
		length := int(binary.BigEndian.Uint16(data[i : i+2]))
		if length < 2 {
			return nil, fmt.Errorf("jpeg: %w: %s length %d", core.ErrCorruptContainer, markerName(marker), length)
		}
		end := i + length
		if end > len(data) {
			return nil, fmt.Errorf("jpeg: %w: %s at offset %d declares %d bytes", core.ErrTruncatedData, markerName(marker), start, length)
		}

		if marker == markerSOS {
			// The scan header, entropy-coded data, EOI and any trailer are
			// kept as a single opaque tail.
			c.Segments = append(c.Segments, core.Segment{
				Kind: core.PixelData, Name: "SOS", Offset: int64(start), Raw: data[start:],
			})
			return c, nil
		}

		seg := classifyJPEG(marker, data[i+2:end])
		seg.Offset = int64(start)
		seg.Raw = data[start:end]
		c.Segments = append(c.Segments, seg)
		i = end
	}
}

func classifyJPEG(marker byte, body []byte) core.Segment {
	seg := core.Segment{Kind: core.Structural, Name: markerName(marker)}
	switch marker {
	case markerAPP1:
		switch {
		case bytes.HasPrefix(body, sigEXIF):
			seg.Kind, seg.Payload = core.MetadataEXIF, body[len(sigEXIF):]
		case bytes.HasPrefix(body, sigXMP):
			seg.Kind, seg.Payload = core.MetadataXMP, body[len(sigXMP):]
		case bytes.HasPrefix(body, sigXMPExt):
			seg.Kind, seg.Payload = core.MetadataXMP, body[len(sigXMPExt):]
			seg.Name = "APP1/xmp-extension"
		default:
			seg.Kind, seg.Payload, seg.Ambiguous = core.MetadataOther, body, true
		}
	case markerAPPD:
		if bytes.HasPrefix(body, sigPhotoshop) {
			seg.Kind, seg.Payload = core.MetadataIPTC, body[len(sigPhotoshop):]
		} else {
			seg.Kind, seg.Payload, seg.Ambiguous = core.MetadataOther, body, true
		}
	case markerCOM:
		seg.Kind, seg.Payload = core.MetadataOther, body
	case markerAPP2:
		if bytes.HasPrefix(body, sigICC) {
			seg.Name = "APP2/icc"
		}
	case markerAPPE:
		if bytes.HasPrefix(body, []byte("Adobe")) {
			seg.Name = "APP14/adobe"
		}
	}
	return seg
}

func markerName(m byte) string {
	switch {
	case m == markerSOI:
		return "SOI"
	case m == markerEOI:
		return "EOI"
	case m == markerSOS:
		return "SOS"
	case m == markerDQT:
		return "DQT"
	case m == markerDHT:
		return "DHT"
	case m == markerDRI:
		return "DRI"
	case m == markerCOM:
		return "COM"
	case m == markerTEM:
		return "TEM"
	case m >= 0xD0 && m <= 0xD7:
		return fmt.Sprintf("RST%d", m-0xD0)
	case m >= markerAPP0 && m <= 0xEF:
		return fmt.Sprintf("APP%d", m-markerAPP0)
	case m >= 0xC0 && m <= 0xCF && m != markerDHT && m != 0xC8 && m != 0xCC:
		return fmt.Sprintf("SOF%d", m-0xC0)
	default:
		return fmt.Sprintf("0xFF%02X", m)
	}
}

func (jpegHandler) Decode(c *core.Container, opts core.DecodeOptions) *core.Record {
	rec := core.NewRecord()
	var ext xmpExtension
	comments := 0
	for _, s := range c.Segments {
		switch s.Kind {
		case core.MetadataEXIF:
			decodeEXIF(s.Payload, rec, opts)
		case core.MetadataIPTC:
			decodeIPTC(s.Payload, rec)
		case core.MetadataXMP:
			if s.Name == "APP1/xmp-extension" {
				ext.add(s.Payload)
				continue
			}
			decodeXMP(s.Payload, rec, opts)
		case core.MetadataOther:
			if s.Name != "COM" {
				continue
			}
			comments++
			id := "Comment"
			if comments > 1 {
				id = fmt.Sprintf("Comment#%d", comments)
			}
			rec.Add(core.Entry{
				Key:   core.Key{Namespace: core.NSJPEG, ID: id},
				Name:  "Comment",
				Value: core.StringValue(textString(s.Payload)),
			})
		}
	}
	ext.decode(rec, opts)
	return rec
}

func (jpegHandler) Plan(c *core.Container) *core.RemovalPlan { return core.BuildPlan(c) }

func (jpegHandler) Rewrite(c *core.Container, plan *core.RemovalPlan) ([]byte, error) {
	return plan.KeptBytes(c), nil
}

// xmpExtension reassembles extended XMP packets split across APP1 segments.
type xmpExtension struct {
	order  []string
	chunks map[string][]byte
}

func (x *xmpExtension) add(payload []byte) {
	if len(payload) < extendedHeader {
		return
	}
	guid := string(payload[:32])
	if x.chunks == nil {
		x.chunks = make(map[string][]byte)
	}
	if _, ok := x.chunks[guid]; !ok {
		x.order = append(x.order, guid)
	}
	x.chunks[guid] = append(x.chunks[guid], payload[extendedHeader:]...)
}

func (x *xmpExtension) decode(rec *core.Record, opts core.DecodeOptions) {
	for _, guid := range x.order {
		rec.Add(core.Entry{
			Key:   core.Key{Namespace: core.NSXMP, ID: "extension/" + guid},
			Name:  "ExtendedXMP",
			Value: core.StringValue(string(bytes.TrimSpace(x.chunks[guid]))),
		})
		if opts.XMPProperties {
			decodeXMPProperties(x.chunks[guid], rec)
		}
	}
}
