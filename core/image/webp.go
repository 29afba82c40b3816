package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

type webpHandler struct{}

func (webpHandler) Info() core.FormatInfo { return formatInfo[core.FmtWebP] }

// VP8X feature flags.
const (
	vp8xFlagXMP  = 0x04
	vp8xFlagEXIF = 0x08
)

func (webpHandler) Parse(data []byte) (*core.Container, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("webp: %w: short RIFF header", core.ErrTruncatedData)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, fmt.Errorf("webp: %w: bad RIFF header", core.ErrCorruptContainer)
	}
	riffSize := uint64(binary.LittleEndian.Uint32(data[4:8]))
	if riffSize < 4 {
		return nil, fmt.Errorf("webp: %w: RIFF size %d", core.ErrCorruptContainer, riffSize)
	}
	end := 8 + riffSize
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("webp: %w: RIFF declares %d bytes, file has %d", core.ErrTruncatedData, end, len(data))
	}

	c := &core.Container{Format: core.FmtWebP}
	c.Segments = append(c.Segments, core.Segment{Kind: core.Structural, Name: "RIFF", Raw: data[:12]})

	i := uint64(12)
	for i < end {
		if i+8 > end {
			return nil, fmt.Errorf("webp: %w: chunk header at offset %d", core.ErrTruncatedData, i)
		}
		fourcc := string(data[i : i+4])
		size := uint64(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		bodyEnd := i + 8 + size
		if bodyEnd > end {
			return nil, fmt.Errorf("webp: %w: %q chunk at offset %d declares %d bytes", core.ErrTruncatedData, fourcc, i, size)
		}
		next := bodyEnd + size&1
		if next > end {
			// Tolerate a missing pad byte on the final chunk.
			next = end
		}
		body := data[i+8 : bodyEnd]
		kind := classifyWebP(fourcc)
		if kind == core.MetadataEXIF {
			body = bytes.TrimPrefix(body, sigEXIF)
		}
		c.Segments = append(c.Segments, core.Segment{
			Kind:    kind,
			Name:    fourcc,
			Offset:  int64(i),
			Raw:     data[i:next],
			Payload: body,
		})
		i = next
	}
	if end < uint64(len(data)) {
		c.Segments = append(c.Segments, core.Segment{
			Kind: core.Structural, Name: "trailer", Offset: int64(end), Raw: data[end:],
		})
	}
	return c, nil
}

func classifyWebP(fourcc string) core.SegmentKind {
	switch fourcc {
	case "EXIF":
		return core.MetadataEXIF
	case "XMP ":
		return core.MetadataXMP
	case "VP8 ", "VP8L", "ALPH", "ANMF":
		return core.PixelData
	default:
		return core.Structural
	}
}

func (webpHandler) Decode(c *core.Container, opts core.DecodeOptions) *core.Record {
	rec := core.NewRecord()
	for _, s := range c.Segments {
		switch s.Kind {
		case core.MetadataEXIF:
			decodeEXIF(s.Payload, rec, opts)
		case core.MetadataXMP:
			decodeXMP(s.Payload, rec, opts)
		}
	}
	return rec
}

func (webpHandler) Plan(c *core.Container) *core.RemovalPlan { return core.BuildPlan(c) }

// Rewrite drops the planned chunks, then fixes the RIFF size and clears the
// VP8X flags for metadata that no longer exists. Both patches keep lengths.
func (webpHandler) Rewrite(c *core.Container, plan *core.RemovalPlan) ([]byte, error) {
	out := plan.KeptBytes(c)
	if plan.Empty() {
		return out, nil
	}

	var (
		riffLen  = len(out)
		vp8xAt   = -1
		hasEXIF  bool
		hasXMP   bool
		position int
	)
	for _, idx := range plan.Kept(c) {
		s := c.Segments[idx]
		switch {
		case s.Name == "trailer":
			riffLen = position
		case s.Name == "VP8X" && vp8xAt < 0:
			vp8xAt = position
		case s.Kind == core.MetadataEXIF:
			hasEXIF = true
		case s.Kind == core.MetadataXMP:
			hasXMP = true
		}
		position += len(s.Raw)
	}
	if riffLen < 12 {
		return nil, fmt.Errorf("webp: %w: RIFF header missing from output", core.ErrCorruptContainer)
	}
	binary.LittleEndian.PutUint32(out[4:8], uint32(riffLen-8))

	if vp8xAt >= 0 && vp8xAt+8 < len(out) {
		flags := out[vp8xAt+8]
		if !hasEXIF {
			flags &^= vp8xFlagEXIF
		}
		if !hasXMP {
			flags &^= vp8xFlagXMP
		}
		out[vp8xAt+8] = flags
	}
	return out, nil
}
