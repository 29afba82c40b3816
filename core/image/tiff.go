package image

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

type tiffHandler struct{}

func (tiffHandler) Info() core.FormatInfo { return formatInfo[core.FmtTIFF] }

const (
	tagStripOffsets    = 0x0111
	tagStripByteCounts = 0x0117
	tagTileOffsets     = 0x0144
	tagTileByteCounts  = 0x0145
	tagThumbOffset     = 0x0201
	tagThumbLength     = 0x0202

	typeShort = 3
	typeLong  = 4
	typeIFD   = 13
)

var tiffTypeSize = map[uint16]uint64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8, typeIFD: 4,
}

// Tags a cleaned TIFF keeps so that it still decodes identically.
var baselineTags = map[uint16]bool{
	0x00FE: true, 0x00FF: true, 0x0100: true, 0x0101: true, 0x0102: true,
	0x0103: true, 0x0106: true, 0x010A: true, 0x0111: true, 0x0112: true,
	0x0115: true, 0x0116: true, 0x0117: true, 0x011A: true, 0x011B: true,
	0x011C: true, 0x0128: true, 0x013D: true, 0x0140: true, 0x0142: true,
	0x0143: true, 0x0144: true, 0x0145: true, 0x0152: true, 0x0153: true,
	0x015B: true, 0x0211: true, 0x0212: true, 0x0213: true, 0x0214: true,
	0x8773: true,
}

// StructuralTag reports whether k is a baseline tag that a cleaned file of
// format f still carries. Such tags describe pixels, not the picture.
func StructuralTag(f core.Format, k core.Key) bool {
	if f != core.FmtTIFF || k.Namespace != core.NSEXIF {
		return false
	}
	id := k.ID
	if strings.HasPrefix(id, "IFD") {
		i := strings.IndexByte(id, '/')
		if i < 0 {
			return false
		}
		if _, err := strconv.Atoi(id[3:i]); err != nil {
			return false
		}
		id = id[i+1:]
	}
	if !strings.HasPrefix(id, "0x") {
		return false
	}
	tag, err := strconv.ParseUint(id[2:], 16, 16)
	if err != nil {
		return false
	}
	return baselineTags[uint16(tag)]
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	// value holds the resolved value bytes, nil when they lie outside the file.
	value []byte
}

type tiffIFD struct {
	name    string
	entries []tiffEntry
	pixels  bool
}

type tiffSpan struct {
	start, end uint64
	kind       core.SegmentKind
	name       string
}

// tiffLayout is the byte map of a TIFF file.
type tiffLayout struct {
	data  []byte
	order binary.ByteOrder
	// pages are the IFDs of the main chain, in order.
	pages []*tiffIFD
	spans []tiffSpan
	seen  map[uint32]bool
}

func readTIFF(data []byte) (*tiffLayout, error) {
	order, ifd0, err := tiffHeader(data)
	if err != nil {
		return nil, fmt.Errorf("tiff: %w", err)
	}
	l := &tiffLayout{data: data, order: order, seen: map[uint32]bool{}}
	off := ifd0
	for n := 0; off != 0; n++ {
		ifd, next, err := l.walk(off, fmt.Sprintf("IFD%d", n))
		if err != nil {
			return nil, err
		}
		if ifd == nil {
			break
		}
		l.pages = append(l.pages, ifd)
		off = next
	}
	if len(l.pages) == 0 {
		return nil, fmt.Errorf("tiff: %w: no image directory", core.ErrCorruptContainer)
	}
	return l, nil
}

func (l *tiffLayout) span(start, end uint64, kind core.SegmentKind, name string) {
	if end > start {
		l.spans = append(l.spans, tiffSpan{start: start, end: end, kind: kind, name: name})
	}
}

// walk maps one IFD, its out-of-line values, pixel ranges and sub-IFDs.
// A nil IFD means the offset was already visited.
func (l *tiffLayout) walk(off uint32, name string) (*tiffIFD, uint32, error) {
	if l.seen[off] {
		return nil, 0, nil
	}
	l.seen[off] = true
	size := uint64(len(l.data))
	if off < 8 {
		return nil, 0, fmt.Errorf("tiff: %w: %s offset %d inside header", core.ErrCorruptContainer, name, off)
	}
	if uint64(off)+2 > size {
		return nil, 0, fmt.Errorf("tiff: %w: %s at offset %d", core.ErrTruncatedData, name, off)
	}
	count := uint64(l.order.Uint16(l.data[off:]))
	tableEnd := uint64(off) + 2 + 12*count + 4
	if tableEnd > size {
		return nil, 0, fmt.Errorf("tiff: %w: %s table at offset %d declares %d entries", core.ErrTruncatedData, name, off, count)
	}
	l.span(uint64(off), tableEnd, core.MetadataEXIF, name)

	ifd := &tiffIFD{name: name}
	var offsets, counts, tiles, tileCounts []uint64
	var thumbOff, thumbLen uint64
	for i := uint64(0); i < count; i++ {
		pos := uint64(off) + 2 + 12*i
		e := tiffEntry{
			tag:   l.order.Uint16(l.data[pos:]),
			typ:   l.order.Uint16(l.data[pos+2:]),
			count: l.order.Uint32(l.data[pos+4:]),
		}
		valSize := tiffTypeSize[e.typ] * uint64(e.count)
		switch {
		case valSize == 0:
		case valSize <= 4:
			e.value = l.data[pos+8 : pos+8+valSize]
		default:
			voff := uint64(l.order.Uint32(l.data[pos+8:]))
			if voff+valSize <= size {
				e.value = l.data[voff : voff+valSize]
				l.span(voff, voff+valSize, valueKind(e.tag), fmt.Sprintf("%s/0x%04x", name, e.tag))
			}
		}
		ifd.entries = append(ifd.entries, e)

		var err error
		switch e.tag {
		case tagStripOffsets:
			offsets, err = l.uints(e)
		case tagStripByteCounts:
			counts, err = l.uints(e)
		case tagTileOffsets:
			tiles, err = l.uints(e)
		case tagTileByteCounts:
			tileCounts, err = l.uints(e)
		case tagThumbOffset, tagThumbLength:
			var v []uint64
			if v, err = l.uints(e); err == nil && len(v) > 0 {
				if e.tag == tagThumbOffset {
					thumbOff = v[0]
				} else {
					thumbLen = v[0]
				}
			}
		case tagExifIFD, tagGPSIFD, tagInteropIFD:
			sub := map[uint16]string{tagExifIFD: "ExifIFD", tagGPSIFD: "GPSIFD", tagInteropIFD: "InteropIFD"}[e.tag]
			if len(e.value) == 4 {
				_, _, err = l.walk(l.order.Uint32(e.value), sub)
			}
		}
		if err != nil {
			return nil, 0, err
		}
	}

	if err := l.pixelSpans(name+"/strip", offsets, counts); err != nil {
		return nil, 0, err
	}
	if err := l.pixelSpans(name+"/tile", tiles, tileCounts); err != nil {
		return nil, 0, err
	}
	ifd.pixels = len(offsets) > 0 || len(tiles) > 0
	if thumbOff > 0 && thumbOff+thumbLen <= size {
		l.span(thumbOff, thumbOff+thumbLen, core.MetadataEXIF, name+"/thumbnail")
	}
	return ifd, l.order.Uint32(l.data[tableEnd-4:]), nil
}

func valueKind(tag uint16) core.SegmentKind {
	switch tag {
	case tagIPTC, tagPhotoshop:
		return core.MetadataIPTC
	case tagXMP:
		return core.MetadataXMP
	default:
		return core.MetadataEXIF
	}
}

func (l *tiffLayout) pixelSpans(name string, offsets, counts []uint64) error {
	if len(offsets) != len(counts) {
		return fmt.Errorf("tiff: %w: %s has %d offsets and %d byte counts", core.ErrCorruptContainer, name, len(offsets), len(counts))
	}
	for i, off := range offsets {
		end := off + counts[i]
		if end > uint64(len(l.data)) {
			return fmt.Errorf("tiff: %w: %s%d ends at %d", core.ErrTruncatedData, name, i, end)
		}
		l.span(off, end, core.PixelData, fmt.Sprintf("%s%d", name, i))
	}
	return nil
}

// uints reads a SHORT or LONG array.
func (l *tiffLayout) uints(e tiffEntry) ([]uint64, error) {
	if e.value == nil {
		return nil, fmt.Errorf("tiff: %w: tag 0x%04x value outside file", core.ErrTruncatedData, e.tag)
	}
	out := make([]uint64, 0, e.count)
	switch e.typ {
	case typeShort:
		for i := 0; i+2 <= len(e.value); i += 2 {
			out = append(out, uint64(l.order.Uint16(e.value[i:])))
		}
	case typeLong, typeIFD:
		for i := 0; i+4 <= len(e.value); i += 4 {
			out = append(out, uint64(l.order.Uint32(e.value[i:])))
		}
	default:
		return nil, fmt.Errorf("tiff: %w: tag 0x%04x has type %d, want SHORT or LONG", core.ErrCorruptContainer, e.tag, e.typ)
	}
	return out, nil
}

// segments turns the span map into a gap-free segment list.
func (l *tiffLayout) segments() ([]core.Segment, error) {
	spans := append([]tiffSpan(nil), l.spans...)
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var merged []tiffSpan
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start < merged[n-1].end {
			last := &merged[n-1]
			if s.kind != last.kind {
				return nil, fmt.Errorf("tiff: %w: %s (%s) overlaps %s (%s)", core.ErrCorruptContainer, s.name, s.kind, last.name, last.kind)
			}
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	segs := []core.Segment{{Kind: core.Structural, Name: "header", Raw: l.data[:8]}}
	cursor := uint64(8)
	for _, s := range merged {
		if s.start < cursor {
			return nil, fmt.Errorf("tiff: %w: %s overlaps the header", core.ErrCorruptContainer, s.name)
		}
		if s.start > cursor {
			segs = append(segs, core.Segment{Kind: core.Structural, Name: "gap", Offset: int64(cursor), Raw: l.data[cursor:s.start]})
		}
		raw := l.data[s.start:s.end]
		segs = append(segs, core.Segment{Kind: s.kind, Name: s.name, Offset: int64(s.start), Raw: raw, Payload: raw})
		cursor = s.end
	}
	if cursor < uint64(len(l.data)) {
		segs = append(segs, core.Segment{Kind: core.Structural, Name: "gap", Offset: int64(cursor), Raw: l.data[cursor:]})
	}
	return segs, nil
}

func (tiffHandler) Parse(data []byte) (*core.Container, error) {
	l, err := readTIFF(data)
	if err != nil {
		return nil, err
	}
	segs, err := l.segments()
	if err != nil {
		return nil, err
	}
	return &core.Container{Format: core.FmtTIFF, Segments: segs}, nil
}

func (tiffHandler) Decode(c *core.Container, opts core.DecodeOptions) *core.Record {
	rec := core.NewRecord()
	decodeEXIF(c.Bytes(), rec, opts)
	return rec
}

func (tiffHandler) Plan(c *core.Container) *core.RemovalPlan {
	p := core.BuildPlan(c)
	if p.Empty() {
		return p
	}
	l, err := readTIFF(c.Bytes())
	if err != nil {
		return p
	}
	for _, page := range l.pages {
		if !page.pixels {
			continue
		}
		for _, e := range keptEntries(page) {
			name := exifNames[e.tag]
			if name == "" {
				name = fmt.Sprintf("0x%04x", e.tag)
			}
			p.Retained = append(p.Retained, fmt.Sprintf("%s baseline tag %s (0x%04x)", page.name, name, e.tag))
		}
	}
	return p
}

func keptEntries(ifd *tiffIFD) []tiffEntry {
	var out []tiffEntry
	for _, e := range ifd.entries {
		if baselineTags[e.tag] && e.value != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tag < out[j].tag })
	return out
}

// Rewrite copies the kept segments verbatim and appends a new IFD chain
// holding only baseline tags, with strip and tile offsets re-pointed at
// the copied pixel data.
func (tiffHandler) Rewrite(c *core.Container, plan *core.RemovalPlan) ([]byte, error) {
	out := plan.KeptBytes(c)
	if plan.Empty() {
		return out, nil
	}
	l, err := readTIFF(c.Bytes())
	if err != nil {
		return nil, err
	}

	type moved struct{ start, end, to uint64 }
	var kept []moved
	var pos uint64
	for _, idx := range plan.Kept(c) {
		s := c.Segments[idx]
		kept = append(kept, moved{start: uint64(s.Offset), end: uint64(s.Offset) + uint64(s.Len()), to: pos})
		pos += uint64(s.Len())
	}
	reloc := func(old uint64) (uint64, bool) {
		i := sort.Search(len(kept), func(i int) bool { return kept[i].end > old })
		if i < len(kept) && kept[i].start <= old {
			return kept[i].to + old - kept[i].start, true
		}
		return 0, false
	}

	link := uint64(4) // position of the pointer to patch with the next IFD
	pages := 0
	for _, page := range l.pages {
		if !page.pixels {
			continue
		}
		entries := keptEntries(page)
		if len(out)%2 == 1 {
			out = append(out, 0)
		}
		tableOff := uint64(len(out))
		tableLen := uint64(2 + 12*len(entries) + 4)
		valueOff := tableOff + tableLen

		table := make([]byte, tableLen)
		var values []byte
		l.order.PutUint16(table, uint16(len(entries)))
		for k, e := range entries {
			typ, val := e.typ, e.value
			if e.tag == tagStripOffsets || e.tag == tagTileOffsets {
				olds, err := l.uints(e)
				if err != nil {
					return nil, err
				}
				val = make([]byte, 4*len(olds))
				for j, old := range olds {
					to, ok := reloc(old)
					if !ok {
						return nil, fmt.Errorf("tiff: %w: %s pixel offset %d not in output", core.ErrCorruptContainer, page.name, old)
					}
					if to > math.MaxUint32 {
						return nil, fmt.Errorf("tiff: %w: output exceeds 4 GiB", core.ErrCorruptContainer)
					}
					l.order.PutUint32(val[4*j:], uint32(to))
				}
				typ = typeLong
			}
			at := 2 + 12*k
			l.order.PutUint16(table[at:], e.tag)
			l.order.PutUint16(table[at+2:], typ)
			l.order.PutUint32(table[at+4:], e.count)
			if len(val) <= 4 {
				copy(table[at+8:], val)
				continue
			}
			if len(values)%2 == 1 {
				values = append(values, 0)
			}
			l.order.PutUint32(table[at+8:], uint32(valueOff+uint64(len(values))))
			values = append(values, val...)
		}

		l.order.PutUint32(out[link:], uint32(tableOff))
		out = append(out, table...)
		out = append(out, values...)
		link = tableOff + tableLen - 4
		pages++
	}
	if pages == 0 {
		return nil, fmt.Errorf("tiff: %w: no directory references image data", core.ErrCorruptContainer)
	}
	if uint64(len(out)) > math.MaxUint32 {
		return nil, fmt.Errorf("tiff: %w: output exceeds 4 GiB", core.ErrCorruptContainer)
	}
	return out, nil
}
