package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/text/encoding/unicode"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

// Tag IDs with special handling.
const (
	tagExifIFD     = 0x8769
	tagGPSIFD      = 0x8825
	tagInteropIFD  = 0xA005
	tagXMP         = 0x02BC
	tagIPTC        = 0x83BB
	tagPhotoshop   = 0x8649
	tagUserComment = 0x9286
)

func names(m map[uint16]exif.FieldName) map[uint16]string {
	out := make(map[uint16]string, len(m))
	for id, n := range m {
		out[id] = string(n)
	}
	return out
}

// Primary and Exif sub-IFD tags. goexif keeps its id tables private, so
// the mapping is spelled out against its exported field names.
var exifNames = names(map[uint16]exif.FieldName{
	0x0100: exif.ImageWidth, 0x0101: exif.ImageLength, 0x0102: exif.BitsPerSample,
	0x0103: exif.Compression, 0x0106: exif.PhotometricInterpretation, 0x0112: exif.Orientation,
	0x0115: exif.SamplesPerPixel, 0x011C: exif.PlanarConfiguration, 0x0212: exif.YCbCrSubSampling,
	0x0213: exif.YCbCrPositioning, 0x011A: exif.XResolution, 0x011B: exif.YResolution,
	0x0128: exif.ResolutionUnit, 0x0132: exif.DateTime, 0x010E: exif.ImageDescription,
	0x010F: exif.Make, 0x0110: exif.Model, 0x0131: exif.Software, 0x013B: exif.Artist,
	0x8298: exif.Copyright, 0x9C9B: exif.XPTitle, 0x9C9C: exif.XPComment, 0x9C9D: exif.XPAuthor,
	0x9C9E: exif.XPKeywords, 0x9C9F: exif.XPSubject,
	tagExifIFD: exif.ExifIFDPointer, tagGPSIFD: exif.GPSInfoIFDPointer, tagInteropIFD: exif.InteroperabilityIFDPointer,
	0x9000: exif.ExifVersion, 0xA000: exif.FlashpixVersion, 0xA001: exif.ColorSpace,
	0x9101: exif.ComponentsConfiguration, 0x9102: exif.CompressedBitsPerPixel,
	0xA002: exif.PixelXDimension, 0xA003: exif.PixelYDimension, 0x927C: exif.MakerNote,
	tagUserComment: exif.UserComment, 0xA004: exif.RelatedSoundFile,
	0x9003: exif.DateTimeOriginal, 0x9004: exif.DateTimeDigitized, 0x9290: exif.SubSecTime,
	0x9291: exif.SubSecTimeOriginal, 0x9292: exif.SubSecTimeDigitized, 0xA420: exif.ImageUniqueID,
	0x829A: exif.ExposureTime, 0x829D: exif.FNumber, 0x8822: exif.ExposureProgram,
	0x8824: exif.SpectralSensitivity, 0x8827: exif.ISOSpeedRatings, 0x8828: exif.OECF,
	0x9201: exif.ShutterSpeedValue, 0x9202: exif.ApertureValue, 0x9203: exif.BrightnessValue,
	0x9204: exif.ExposureBiasValue, 0x9205: exif.MaxApertureValue, 0x9206: exif.SubjectDistance,
	0x9207: exif.MeteringMode, 0x9208: exif.LightSource, 0x9209: exif.Flash, 0x920A: exif.FocalLength,
	0x9214: exif.SubjectArea, 0xA20B: exif.FlashEnergy, 0xA20C: exif.SpatialFrequencyResponse,
	0xA20E: exif.FocalPlaneXResolution, 0xA20F: exif.FocalPlaneYResolution,
	0xA210: exif.FocalPlaneResolutionUnit, 0xA214: exif.SubjectLocation, 0xA215: exif.ExposureIndex,
	0xA217: exif.SensingMethod, 0xA300: exif.FileSource, 0xA301: exif.SceneType, 0xA302: exif.CFAPattern,
	0xA401: exif.CustomRendered, 0xA402: exif.ExposureMode, 0xA403: exif.WhiteBalance,
	0xA404: exif.DigitalZoomRatio, 0xA405: exif.FocalLengthIn35mmFilm, 0xA406: exif.SceneCaptureType,
	0xA407: exif.GainControl, 0xA408: exif.Contrast, 0xA409: exif.Saturation, 0xA40A: exif.Sharpness,
	0xA40B: exif.DeviceSettingDescription, 0xA40C: exif.SubjectDistanceRange,
	0xA433: exif.LensMake, 0xA434: exif.LensModel,
	0x0201: exif.ThumbJPEGInterchangeFormat, 0x0202: exif.ThumbJPEGInterchangeFormatLength,
})

// Baseline TIFF and newer Exif tags goexif does not name.
var baselineNames = map[uint16]string{
	0x00FE: "NewSubfileType", 0x00FF: "SubfileType", 0x010D: "DocumentName",
	0x0111: "StripOffsets", 0x0116: "RowsPerStrip", 0x0117: "StripByteCounts",
	0x011D: "PageName", 0x0129: "PageNumber", 0x012D: "TransferFunction",
	0x013C: "HostComputer", 0x013D: "Predictor", 0x013E: "WhitePoint",
	0x013F: "PrimaryChromaticities", 0x0140: "ColorMap", 0x0142: "TileWidth",
	0x0143: "TileLength", 0x0144: "TileOffsets", 0x0145: "TileByteCounts",
	0x014A: "SubIFDs", 0x0152: "ExtraSamples", 0x0153: "SampleFormat",
	0x015B: "JPEGTables", 0x0211: "YCbCrCoefficients", 0x0214: "ReferenceBlackWhite",
	tagXMP: "XMLPacket", tagIPTC: "IPTCNAA", tagPhotoshop: "ImageResources",
	0x8773: "InterColorProfile", 0x8830: "SensitivityType", 0x8832: "RecommendedExposureIndex",
	0x9010: "OffsetTime", 0x9011: "OffsetTimeOriginal", 0x9012: "OffsetTimeDigitized",
	0xA430: "CameraOwnerName", 0xA431: "BodySerialNumber", 0xA432: "LensSpecification",
	0xA435: "LensSerialNumber", 0xC4A5: "PrintImageMatching",
}

var gpsNames = names(map[uint16]exif.FieldName{
	0x00: exif.GPSVersionID, 0x01: exif.GPSLatitudeRef, 0x02: exif.GPSLatitude,
	0x03: exif.GPSLongitudeRef, 0x04: exif.GPSLongitude, 0x05: exif.GPSAltitudeRef,
	0x06: exif.GPSAltitude, 0x07: exif.GPSTimeStamp, 0x08: exif.GPSSatelites,
	0x09: exif.GPSStatus, 0x0A: exif.GPSMeasureMode, 0x0B: exif.GPSDOP,
	0x0C: exif.GPSSpeedRef, 0x0D: exif.GPSSpeed, 0x0E: exif.GPSTrackRef,
	0x0F: exif.GPSTrack, 0x10: exif.GPSImgDirectionRef, 0x11: exif.GPSImgDirection,
	0x12: exif.GPSMapDatum, 0x13: exif.GPSDestLatitudeRef, 0x14: exif.GPSDestLatitude,
	0x15: exif.GPSDestLongitudeRef, 0x16: exif.GPSDestLongitude, 0x17: exif.GPSDestBearingRef,
	0x18: exif.GPSDestBearing, 0x19: exif.GPSDestDistanceRef, 0x1A: exif.GPSDestDistance,
	0x1B: exif.GPSProcessingMethod, 0x1C: exif.GPSAreaInformation, 0x1D: exif.GPSDateStamp,
	0x1E: exif.GPSDifferential,
})

var interopNames = map[uint16]string{
	0x0001: string(exif.InteroperabilityIndex),
	0x0002: "InteroperabilityVersion",
}

func init() {
	for id, n := range baselineNames {
		if _, ok := exifNames[id]; !ok {
			exifNames[id] = n
		}
	}
}

// ifdScope says where a directory's entries land in the record.
type ifdScope struct {
	ns     core.Namespace
	prefix string
	names  map[uint16]string
}

var (
	scopeIFD0    = ifdScope{ns: core.NSEXIF, names: exifNames}
	scopeGPS     = ifdScope{ns: core.NSGPS, names: gpsNames}
	scopeInterop = ifdScope{ns: core.NSEXIF, prefix: "Interop/", names: interopNames}
)

func (s ifdScope) key(id uint16) (core.Key, string) {
	k := core.Key{Namespace: s.ns, ID: fmt.Sprintf("%s0x%04x", s.prefix, id)}
	name, ok := s.names[id]
	if !ok {
		return k, k.ID
	}
	return k, s.prefix + name
}

// tiffHeader validates a TIFF header and returns the byte order and the
// offset of IFD0.
func tiffHeader(data []byte) (binary.ByteOrder, uint32, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("%w: TIFF header needs 8 bytes, have %d", core.ErrTruncatedData, len(data))
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, fmt.Errorf("%w: bad TIFF byte order %q", core.ErrCorruptContainer, data[:2])
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, 0, fmt.Errorf("%w: bad TIFF magic", core.ErrCorruptContainer)
	}
	return order, order.Uint32(data[4:8]), nil
}

type exifDecoder struct {
	data   []byte
	order  binary.ByteOrder
	rec    *core.Record
	opts   core.DecodeOptions
	seen   map[uint32]bool
	hasGPS bool
	// gps holds the decoded GPS tags the coordinate pair is built from.
	gps map[uint16]*tiff.Tag
}

// decodeEXIF decodes a TIFF-structured EXIF block into rec. A damaged
// header aborts only this block; damaged tags become Unreadable values.
func decodeEXIF(data []byte, rec *core.Record, opts core.DecodeOptions) {
	order, ifd0, err := tiffHeader(data)
	if err != nil {
		rec.Add(core.Entry{
			Key:   core.Key{Namespace: core.NSEXIF, ID: "header"},
			Name:  "TIFFHeader",
			Value: core.Unreadable(err.Error()),
		})
		return
	}
	d := &exifDecoder{data: data, order: order, rec: rec, opts: opts, seen: map[uint32]bool{}, gps: map[uint16]*tiff.Tag{}}
	off := ifd0
	for n := 0; off != 0; n++ {
		scope := scopeIFD0
		if n > 0 {
			scope = ifdScope{ns: core.NSEXIF, prefix: fmt.Sprintf("IFD%d/", n), names: exifNames}
		}
		next, ok := d.dir(off, scope)
		if !ok {
			break
		}
		off = next
	}
	if d.hasGPS {
		d.position()
	}
}

// dir decodes one IFD and returns the offset of the next one in its chain.
func (d *exifDecoder) dir(off uint32, s ifdScope) (uint32, bool) {
	if d.seen[off] {
		return 0, false
	}
	d.seen[off] = true

	size := uint64(len(d.data))
	if uint64(off)+2 > size {
		d.rec.Add(core.Entry{
			Key:   core.Key{Namespace: s.ns, ID: s.prefix + "directory"},
			Value: core.Unreadable(fmt.Sprintf("IFD offset %d beyond end of data", off)),
		})
		return 0, false
	}
	count := uint64(d.order.Uint16(d.data[off:]))
	r := bytes.NewReader(d.data)
	for i := uint64(0); i < count; i++ {
		pos := uint64(off) + 2 + 12*i
		if pos+12 > size {
			d.rec.Add(core.Entry{
				Key:   core.Key{Namespace: s.ns, ID: s.prefix + "directory"},
				Value: core.Unreadable(fmt.Sprintf("IFD at %d truncated after %d of %d entries", off, i, count)),
			})
			return 0, false
		}
		d.entry(r, int64(pos), s)
	}
	nextPos := uint64(off) + 2 + 12*count
	if nextPos+4 > size {
		return 0, false
	}
	return d.order.Uint32(d.data[nextPos:]), true
}

func (d *exifDecoder) entry(r *bytes.Reader, pos int64, s ifdScope) {
	id := d.order.Uint16(d.data[pos:])
	// Sub-IFD pointers are followed directly; their type may be LONG or IFD.
	switch id {
	case tagExifIFD, tagGPSIFD, tagInteropIFD:
		if s.ns == core.NSEXIF && s.prefix == "" || id == tagInteropIFD {
			ptr := d.order.Uint32(d.data[pos+8:])
			switch id {
			case tagExifIFD:
				d.dir(ptr, scopeIFD0)
			case tagGPSIFD:
				d.hasGPS = true
				d.dir(ptr, scopeGPS)
			case tagInteropIFD:
				d.dir(ptr, scopeInterop)
			}
			return
		}
	}

	key, name := s.key(id)
	typ := d.order.Uint16(d.data[pos+2:])
	count := d.order.Uint32(d.data[pos+4:])
	if size := tiffTypeSize[typ] * uint64(count); size > uint64(len(d.data)) {
		d.rec.Add(core.Entry{Key: key, Name: name, Value: core.Unreadable(
			fmt.Sprintf("type %d count %d needs %d bytes, block has %d", typ, count, size, len(d.data)))})
		return
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		d.rec.Add(core.Entry{Key: key, Name: name, Value: core.Unreadable(err.Error())})
		return
	}
	tag, err := tiff.DecodeTag(r, d.order)
	if err != nil {
		d.rec.Add(core.Entry{Key: key, Name: name, Value: core.Unreadable(err.Error())})
		return
	}

	if s.ns == core.NSGPS && d.gps[id] == nil {
		d.gps[id] = tag
	}

	switch {
	case id == tagXMP && s.ns == core.NSEXIF:
		decodeXMP(tag.Val, d.rec, d.opts)
		return
	case (id == tagIPTC || id == tagPhotoshop) && s.ns == core.NSEXIF:
		decodeIPTC(tag.Val, d.rec)
		return
	case id == tagUserComment && s.ns == core.NSEXIF:
		d.rec.Add(core.Entry{Key: key, Name: name, Value: userComment(tag.Val, d.order)})
		return
	case id >= 0x9C9B && id <= 0x9C9F && s.ns == core.NSEXIF:
		d.rec.Add(core.Entry{Key: key, Name: name, Value: utf16Value(tag.Val, binary.LittleEndian)})
		return
	}
	d.rec.Add(core.Entry{Key: key, Name: name, Value: tagValue(tag)})
}

// position computes the decimal coordinate pair from the GPS directory.
func (d *exifDecoder) position() {
	lat, ok := gpsDegrees(d.gps[0x0002], d.gps[0x0001], "S")
	if !ok {
		return
	}
	lon, ok := gpsDegrees(d.gps[0x0004], d.gps[0x0003], "W")
	if !ok {
		return
	}
	d.rec.Add(core.Entry{
		Key:   core.Key{Namespace: core.NSGPS, ID: "Position"},
		Name:  "GPSPosition",
		Value: core.GPSValue(lat, lon),
	})
}

// gpsDegrees converts a degrees/minutes/seconds triple, negated when the
// reference tag equals negative.
func gpsDegrees(val, ref *tiff.Tag, negative string) (float64, bool) {
	if val == nil || ref == nil || val.Format() != tiff.RatVal || val.Count < 3 {
		return 0, false
	}
	var dms [3]float64
	for i := range dms {
		num, den, err := val.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}
		dms[i] = float64(num) / float64(den)
	}
	deg := dms[0] + dms[1]/60 + dms[2]/3600
	r, err := ref.StringVal()
	if err != nil {
		return 0, false
	}
	if strings.TrimRight(r, "\x00 ") == negative {
		deg = -deg
	}
	return deg, true
}

func tagValue(t *tiff.Tag) core.Value {
	n := int(t.Count)
	switch t.Format() {
	case tiff.IntVal:
		vals := make([]int64, 0, n)
		for i := 0; i < n; i++ {
			v, err := t.Int64(i)
			if err != nil {
				return core.Unreadable(err.Error())
			}
			vals = append(vals, v)
		}
		return core.IntValue(vals...)
	case tiff.RatVal:
		vals := make([]core.Rational, 0, n)
		for i := 0; i < n; i++ {
			num, den, err := t.Rat2(i)
			if err != nil {
				return core.Unreadable(err.Error())
			}
			vals = append(vals, core.Rational{Num: num, Den: den})
		}
		return core.RationalValue(vals...)
	case tiff.FloatVal:
		vals := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			v, err := t.Float(i)
			if err != nil {
				return core.Unreadable(err.Error())
			}
			vals = append(vals, v)
		}
		return core.FloatValue(vals...)
	case tiff.StringVal:
		s, err := t.StringVal()
		if err != nil {
			return core.Unreadable(err.Error())
		}
		return core.StringValue(textString([]byte(s)))
	case tiff.UndefVal:
		if printable(t.Val) {
			return core.StringValue(string(bytes.TrimRight(t.Val, "\x00")))
		}
		return core.BytesValue(t.Val)
	}
	return core.Unreadable(fmt.Sprintf("unsupported tag type %d", t.Type))
}

func printable(b []byte) bool {
	b = bytes.TrimRight(b, "\x00")
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

// userComment honours the 8-byte character code prefix.
func userComment(b []byte, order binary.ByteOrder) core.Value {
	if len(b) < 8 {
		return core.Unreadable("UserComment shorter than its character code")
	}
	code, body := string(bytes.TrimRight(b[:8], "\x00 ")), b[8:]
	switch code {
	case "ASCII", "":
		return core.StringValue(string(bytes.TrimRight(body, "\x00 ")))
	case "UNICODE":
		return utf16Value(body, order)
	case "JIS":
		return core.BytesValue(body)
	}
	return core.StringValue(textString(bytes.TrimRight(body, "\x00 ")))
}

func utf16Value(b []byte, order binary.ByteOrder) core.Value {
	endian := unicode.LittleEndian
	if order == binary.BigEndian {
		endian = unicode.BigEndian
	}
	out, err := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return core.Unreadable(err.Error())
	}
	return core.StringValue(string(bytes.TrimRight(out, "\x00 ")))
}
