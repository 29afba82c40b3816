// Package core defines the shared types, interfaces, and error taxonomy
// for Image Metadata Surgery.
package core

import (
	"bytes"
	"fmt"
)

// SegmentKind classifies a contiguous byte region of a container.
type SegmentKind int

const (
	Structural SegmentKind = iota
	PixelData
	MetadataEXIF
	MetadataIPTC
	MetadataXMP
	MetadataOther
)

var segmentKindNames = map[SegmentKind]string{
	Structural:    "structural",
	PixelData:     "pixel",
	MetadataEXIF:  "exif",
	MetadataIPTC:  "iptc",
	MetadataXMP:   "xmp",
	MetadataOther: "other",
}

func (k SegmentKind) String() string {
	if name, ok := segmentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsMetadata reports whether segments of this kind carry metadata.
func (k SegmentKind) IsMetadata() bool {
	return k == MetadataEXIF || k == MetadataIPTC || k == MetadataXMP || k == MetadataOther
}

// Segment is one typed byte range of an image file.
type Segment struct {
	Kind SegmentKind
	Name string // Marker or chunk label (e.g. "APP1", "eXIf", "IFD0")
	// Offset is the position of Raw[0] within the original file.
	Offset int64
	// Raw holds the exact bytes of the range, headers included.
	Raw []byte
	// Payload is the interpreted sub-slice of Raw (after marker, length and
	// signature headers). Nil for segments without a payload.
	Payload []byte
	// Ambiguous marks a MetadataOther segment that is not known to be safe
	// to drop. Such segments are always kept.
	Ambiguous bool
}

// Len returns the number of file bytes the segment covers.
func (s Segment) Len() int64 { return int64(len(s.Raw)) }

// Container is the parsed, immutable segment view of one image file.
type Container struct {
	Format   Format
	Segments []Segment
}

// Len returns the total size in bytes of all segments.
func (c *Container) Len() int64 {
	var n int64
	for _, s := range c.Segments {
		n += s.Len()
	}
	return n
}

// Bytes reassembles the original file from its segments.
func (c *Container) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(int(c.Len()))
	for _, s := range c.Segments {
		buf.Write(s.Raw)
	}
	return buf.Bytes()
}

// Count returns how many segments are of the given kind.
func (c *Container) Count(kind SegmentKind) int {
	n := 0
	for _, s := range c.Segments {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// DecodeOptions tunes metadata decoding.
type DecodeOptions struct {
	// XMPProperties decomposes XMP packets into individual properties in
	// addition to the opaque packet entry.
	XMPProperties bool
}

// FormatInfo describes what a format handler supports.
type FormatInfo struct {
	Name       string   // "JPEG"
	Extensions []string // [".jpg", ".jpeg"]
	MIMETypes  []string
	Notes      string // Any caveats or notes
}

// Handler is the interface every container format implements.
type Handler interface {
	// Parse walks data into an ordered, gap-free sequence of segments.
	Parse(data []byte) (*Container, error)
	// Decode interprets the metadata-bearing segments. It never fails;
	// damaged tags are recorded as Unreadable values.
	Decode(c *Container, opts DecodeOptions) *Record
	// Plan decides which segments a clean operation removes.
	Plan(c *Container) *RemovalPlan
	// Rewrite emits a new file with the planned segments removed.
	Rewrite(c *Container, plan *RemovalPlan) ([]byte, error)
	// Info returns format capabilities.
	Info() FormatInfo
}
