package image

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"sort"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

type testEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	val   []byte
	// off, when set, points the entry at existing bytes instead of val.
	off uint32
}

// tiffBuilder lays out TIFF structures front to back so that every offset
// is known when the referencing directory is written.
type tiffBuilder struct {
	order binary.ByteOrder
	buf   []byte
}

func newTIFFBuilder(order binary.ByteOrder) *tiffBuilder {
	b := &tiffBuilder{order: order}
	if order == binary.LittleEndian {
		b.buf = []byte("II*\x00\x00\x00\x00\x00")
	} else {
		b.buf = []byte("MM\x00*\x00\x00\x00\x00")
	}
	return b
}

func (b *tiffBuilder) align() {
	if len(b.buf)%2 == 1 {
		b.buf = append(b.buf, 0)
	}
}

func (b *tiffBuilder) raw(p []byte) uint32 {
	b.align()
	off := len(b.buf)
	b.buf = append(b.buf, p...)
	return uint32(off)
}

func (b *tiffBuilder) ascii(tag uint16, s string) testEntry {
	v := append([]byte(s), 0)
	return testEntry{tag: tag, typ: 2, count: uint32(len(v)), val: v}
}

func (b *tiffBuilder) shorts(tag uint16, vs ...uint16) testEntry {
	v := make([]byte, 2*len(vs))
	for i, n := range vs {
		b.order.PutUint16(v[2*i:], n)
	}
	return testEntry{tag: tag, typ: 3, count: uint32(len(vs)), val: v}
}

func (b *tiffBuilder) longs(tag uint16, vs ...uint32) testEntry {
	v := make([]byte, 4*len(vs))
	for i, n := range vs {
		b.order.PutUint32(v[4*i:], n)
	}
	return testEntry{tag: tag, typ: 4, count: uint32(len(vs)), val: v}
}

// rationals takes numerator/denominator pairs.
func (b *tiffBuilder) rationals(tag uint16, pairs ...uint32) testEntry {
	v := make([]byte, 4*len(pairs))
	for i, n := range pairs {
		b.order.PutUint32(v[4*i:], n)
	}
	return testEntry{tag: tag, typ: 5, count: uint32(len(pairs) / 2), val: v}
}

func undefined(tag uint16, v []byte) testEntry {
	return testEntry{tag: tag, typ: 7, count: uint32(len(v)), val: v}
}

func (b *tiffBuilder) ifd(entries []testEntry, next uint32) uint32 {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
	b.align()
	off := len(b.buf)
	tableLen := 2 + 12*len(entries) + 4
	valueOff := off + tableLen
	table := make([]byte, tableLen)
	var values []byte
	b.order.PutUint16(table, uint16(len(entries)))
	for i, e := range entries {
		at := 2 + 12*i
		b.order.PutUint16(table[at:], e.tag)
		b.order.PutUint16(table[at+2:], e.typ)
		b.order.PutUint32(table[at+4:], e.count)
		if e.off != 0 {
			b.order.PutUint32(table[at+8:], e.off)
			continue
		}
		if len(e.val) <= 4 {
			copy(table[at+8:], e.val)
			continue
		}
		if len(values)%2 == 1 {
			values = append(values, 0)
		}
		b.order.PutUint32(table[at+8:], uint32(valueOff+len(values)))
		values = append(values, e.val...)
	}
	b.order.PutUint32(table[tableLen-4:], next)
	b.buf = append(b.buf, table...)
	b.buf = append(b.buf, values...)
	return uint32(off)
}

func (b *tiffBuilder) finish(ifd0 uint32) []byte {
	b.order.PutUint32(b.buf[4:], ifd0)
	return b.buf
}

// Coordinates encoded by sampleEXIF.
const (
	sampleLat = 40.0 + 26.0/60 + 46.0/3600
	sampleLon = -(79.0 + 58.0/60 + 56.0/3600)
)

// sampleEXIF builds an EXIF block with camera, capture time and GPS tags.
func sampleEXIF(order binary.ByteOrder, extra ...testEntry) []byte {
	b := newTIFFBuilder(order)
	gps := b.ifd([]testEntry{
		{tag: 0x0000, typ: 1, count: 4, val: []byte{2, 3, 0, 0}},
		b.ascii(0x0001, "N"),
		b.rationals(0x0002, 40, 1, 26, 1, 46, 1),
		b.ascii(0x0003, "W"),
		b.rationals(0x0004, 79, 1, 58, 1, 56, 1),
	}, 0)
	exifIFD := b.ifd([]testEntry{
		b.ascii(0x9003, "2024:05:01 10:20:30"),
		b.rationals(0x829A, 1, 250),
		undefined(0x9000, []byte("0231")),
	}, 0)
	entries := []testEntry{
		b.ascii(0x010F, "Acme"),
		b.ascii(0x0110, "Model X"),
		b.shorts(0x0112, 1),
		b.longs(tagExifIFD, exifIFD),
		b.longs(tagGPSIFD, gps),
	}
	ifd0 := b.ifd(append(entries, extra...), 0)
	return b.finish(ifd0)
}

const sampleXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>` +
	`<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
	`<rdf:Description rdf:about="" xmlns:xmp="http://ns.adobe.com/xap/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmp:CreatorTool="Editor 1.0">` +
	`<dc:subject><rdf:Bag><rdf:li>cat</rdf:li><rdf:li>dog</rdf:li></rdf:Bag></dc:subject>` +
	`</rdf:Description></rdf:RDF></x:xmpmeta><?xpacket end="w"?>`

// sampleIIM encodes record 2 datasets: two keywords and a city.
func sampleIIM() []byte {
	var buf bytes.Buffer
	put := func(ds byte, v string) {
		buf.Write([]byte{0x1C, 2, ds, byte(len(v) >> 8), byte(len(v))})
		buf.WriteString(v)
	}
	put(0x19, "alpha")
	put(0x19, "beta")
	put(0x5A, "Pittsburgh")
	return buf.Bytes()
}

// sampleIRB wraps an IIM stream in a Photoshop 8BIM resource.
func sampleIRB() []byte {
	iim := sampleIIM()
	var buf bytes.Buffer
	buf.WriteString("8BIM")
	buf.Write([]byte{0x04, 0x04, 0, 0})
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(iim)))
	buf.Write(size)
	buf.Write(iim)
	if len(iim)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func gradient(w, h int) stdimage.Image {
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: uint8((x + y) * 8), A: 255})
		}
	}
	return img
}

func jpegSegment(marker byte, body []byte) []byte {
	n := len(body) + 2
	return append([]byte{0xFF, marker, byte(n >> 8), byte(n)}, body...)
}

// testJPEG encodes a small image and inserts segments right after SOI.
func testJPEG(t *testing.T, segments ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(16, 16), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()
	out := append([]byte{}, data[:2]...)
	for _, s := range segments {
		out = append(out, s...)
	}
	return append(out, data[2:]...)
}

func pngChunk(typ string, body []byte) []byte {
	out := make([]byte, 8, 12+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], typ)
	out = append(out, body...)
	crc := make([]byte, 4)
	binary.BigEndian.PutUint32(crc, crc32.ChecksumIEEE(out[4:]))
	return append(out, crc...)
}

// testPNG encodes a small image and inserts chunks right after IHDR.
func testPNG(t *testing.T, chunks ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(16, 16)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	const afterIHDR = 8 + 8 + 13 + 4
	out := append([]byte{}, data[:afterIHDR]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, data[afterIHDR:]...)
}

func riffChunk(fourcc string, body []byte) []byte {
	out := make([]byte, 8, 9+len(body))
	copy(out, fourcc)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(body)))
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// testWebP inserts chunks after the VP8X chunk of the fixture and sets the
// matching feature flags.
func testWebP(t *testing.T, chunks ...[]byte) []byte {
	t.Helper()
	base, err := os.ReadFile("testdata/alpha.webp")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	const afterVP8X = 12 + 8 + 10
	out := append([]byte{}, base[:afterVP8X]...)
	for _, c := range chunks {
		out = append(out, c...)
		switch string(c[:4]) {
		case "EXIF":
			out[20] |= vp8xFlagEXIF
		case "XMP ":
			out[20] |= vp8xFlagXMP
		}
	}
	out = append(out, base[afterVP8X:]...)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(out)-8))
	return out
}

// testTIFF builds a 4x4 RGB image in one uncompressed strip with camera
// metadata in IFD0 and the Exif sub-IFD.
func testTIFF(t *testing.T, order binary.ByteOrder, extra ...testEntry) []byte {
	t.Helper()
	b := newTIFFBuilder(order)
	pix := make([]byte, 4*4*3)
	for i := range pix {
		pix[i] = byte(i * 5)
	}
	strip := b.raw(pix)
	exifIFD := b.ifd([]testEntry{b.ascii(0x9003, "2024:05:01 10:20:30")}, 0)
	entries := []testEntry{
		b.longs(0x0100, 4),
		b.longs(0x0101, 4),
		b.shorts(0x0102, 8, 8, 8),
		b.shorts(0x0103, 1),
		b.shorts(0x0106, 2),
		b.longs(0x0111, strip),
		b.shorts(0x0115, 3),
		b.longs(0x0116, 4),
		b.longs(0x0117, uint32(len(pix))),
		b.rationals(0x011A, 72, 1),
		b.rationals(0x011B, 72, 1),
		b.shorts(0x0128, 2),
		b.ascii(0x010F, "Acme"),
		b.ascii(0x0131, "surgery-test"),
		b.longs(tagExifIFD, exifIFD),
	}
	ifd0 := b.ifd(append(entries, extra...), 0)
	return b.finish(ifd0)
}

func parse(t *testing.T, h core.Handler, data []byte) *core.Container {
	t.Helper()
	c, err := h.Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !bytes.Equal(c.Bytes(), data) {
		t.Fatal("segments do not reassemble the input")
	}
	return c
}

func clean(t *testing.T, h core.Handler, data []byte) ([]byte, *core.RemovalPlan) {
	t.Helper()
	c := parse(t, h, data)
	plan := h.Plan(c)
	out, err := h.Rewrite(c, plan)
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	return out, plan
}

func decode(t *testing.T, h core.Handler, data []byte, opts core.DecodeOptions) *core.Record {
	t.Helper()
	return h.Decode(parse(t, h, data), opts)
}

func assertSamePixels(t *testing.T, before, after []byte) {
	t.Helper()
	a, err := imaging.Decode(bytes.NewReader(before))
	if err != nil {
		t.Fatalf("decode original: %v", err)
	}
	b, err := imaging.Decode(bytes.NewReader(after))
	if err != nil {
		t.Fatalf("decode cleaned: %v", err)
	}
	pa, pb := imaging.Clone(a), imaging.Clone(b)
	if !pa.Bounds().Eq(pb.Bounds()) {
		t.Fatalf("bounds changed: %v -> %v", pa.Bounds(), pb.Bounds())
	}
	if !bytes.Equal(pa.Pix, pb.Pix) {
		t.Fatal("decoded pixels differ after clean")
	}
}

func mustGet(t *testing.T, rec *core.Record, ns core.Namespace, id string) core.Entry {
	t.Helper()
	e, ok := rec.Get(core.Key{Namespace: ns, ID: id})
	if !ok {
		t.Fatalf("missing %s:%s in %v", ns, id, rec.Keys())
	}
	return e
}
