package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

type pngHandler struct{}

func (pngHandler) Info() core.FormatInfo { return formatInfo[core.FmtPNG] }

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const xmpKeyword = "XML:com.adobe.xmp"

func (pngHandler) Parse(data []byte) (*core.Container, error) {
	if len(data) < len(pngSignature) {
		return nil, fmt.Errorf("png: %w: short signature", core.ErrTruncatedData)
	}
	if !bytes.Equal(data[:8], pngSignature) {
		return nil, fmt.Errorf("png: %w: bad signature", core.ErrCorruptContainer)
	}
	c := &core.Container{Format: core.FmtPNG}
	c.Segments = append(c.Segments, core.Segment{Kind: core.Structural, Name: "signature", Raw: data[:8]})

	i := 8
	for {
		if i+8 > len(data) {
			return nil, fmt.Errorf("png: %w: missing IEND", core.ErrTruncatedData)
		}
		length := binary.BigEndian.Uint32(data[i : i+4])
		if length > 1<<31-1 {
			return nil, fmt.Errorf("png: %w: chunk length %d at offset %d", core.ErrCorruptContainer, length, i)
		}
		typ := data[i+4 : i+8]
		if !validChunkType(typ) {
			return nil, fmt.Errorf("png: %w: invalid chunk type %q at offset %d", core.ErrCorruptContainer, typ, i)
		}
		dataEnd := i + 8 + int(length)
		end := dataEnd + 4
		if end > len(data) {
			return nil, fmt.Errorf("png: %w: %s chunk at offset %d declares %d bytes", core.ErrTruncatedData, typ, i, length)
		}
		want := binary.BigEndian.Uint32(data[dataEnd:end])
		if got := crc32.ChecksumIEEE(data[i+4 : dataEnd]); got != want {
			return nil, fmt.Errorf("png: %w: %s chunk at offset %d has CRC %08x, want %08x", core.ErrCorruptContainer, typ, i, got, want)
		}

		body := data[i+8 : dataEnd]
		c.Segments = append(c.Segments, core.Segment{
			Kind:    classifyPNG(string(typ), body),
			Name:    string(typ),
			Offset:  int64(i),
			Raw:     data[i:end],
			Payload: body,
		})
		i = end
		if string(typ) == "IEND" {
			break
		}
	}
	if i < len(data) {
		c.Segments = append(c.Segments, core.Segment{
			Kind: core.Structural, Name: "trailer", Offset: int64(i), Raw: data[i:],
		})
	}
	return c, nil
}

func validChunkType(typ []byte) bool {
	for _, b := range typ {
		if !(b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z') {
			return false
		}
	}
	return true
}

func classifyPNG(typ string, body []byte) core.SegmentKind {
	switch typ {
	case "eXIf":
		return core.MetadataEXIF
	case "tEXt", "zTXt", "iTXt":
		if keyword(body) == xmpKeyword {
			return core.MetadataXMP
		}
		return core.MetadataOther
	case "tIME":
		return core.MetadataOther
	case "IDAT", "fdAT":
		return core.PixelData
	default:
		return core.Structural
	}
}

func keyword(body []byte) string {
	if n := bytes.IndexByte(body, 0); n > 0 {
		return string(body[:n])
	}
	return ""
}

func (pngHandler) Decode(c *core.Container, opts core.DecodeOptions) *core.Record {
	rec := core.NewRecord()
	for _, s := range c.Segments {
		if !s.Kind.IsMetadata() {
			continue
		}
		switch s.Name {
		case "eXIf":
			decodeEXIF(s.Payload, rec, opts)
		case "tIME":
			decodePNGTime(s.Payload, rec)
		case "tEXt", "zTXt", "iTXt":
			decodePNGText(s.Name, s.Payload, rec, opts)
		}
	}
	return rec
}

func decodePNGTime(body []byte, rec *core.Record) {
	key := core.Key{Namespace: core.NSPNG, ID: "LastModified"}
	if len(body) != 7 {
		rec.Add(core.Entry{Key: key, Name: "LastModified", Value: core.Unreadable(fmt.Sprintf("tIME is %d bytes, want 7", len(body)))})
		return
	}
	year := binary.BigEndian.Uint16(body[0:2])
	rec.Add(core.Entry{
		Key:   key,
		Name:  "LastModified",
		Value: core.StringValue(fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, body[2], body[3], body[4], body[5], body[6])),
	})
}

func (pngHandler) Plan(c *core.Container) *core.RemovalPlan { return core.BuildPlan(c) }

func (pngHandler) Rewrite(c *core.Container, plan *core.RemovalPlan) ([]byte, error) {
	return plan.KeptBytes(c), nil
}
