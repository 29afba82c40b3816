package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

// IIM record 2 (application record) dataset names.
var iptcNames = map[byte]string{
	0x00: "RecordVersion",
	0x05: "ObjectName",
	0x07: "EditStatus",
	0x0A: "Urgency",
	0x0F: "Category",
	0x14: "SupplementalCategory",
	0x16: "FixtureIdentifier",
	0x19: "Keywords",
	0x1A: "ContentLocationCode",
	0x1B: "ContentLocationName",
	0x1E: "ReleaseDate",
	0x23: "ReleaseTime",
	0x28: "SpecialInstructions",
	0x37: "DateCreated",
	0x3C: "TimeCreated",
	0x3E: "DigitalCreationDate",
	0x3F: "DigitalCreationTime",
	0x41: "OriginatingProgram",
	0x46: "ProgramVersion",
	0x50: "Byline",
	0x55: "BylineTitle",
	0x5A: "City",
	0x5C: "Sublocation",
	0x5F: "Province",
	0x64: "CountryCode",
	0x65: "Country",
	0x67: "OriginalTransmissionReference",
	0x69: "Headline",
	0x6E: "Credit",
	0x73: "Source",
	0x74: "CopyrightNotice",
	0x76: "Contact",
	0x78: "Caption",
	0x7A: "CaptionWriter",
}

const (
	irbIPTC    = 0x0404
	iimTagMark = 0x1C
	irbSig     = "8BIM"
)

// decodeIPTC accepts either a Photoshop image resource block or a bare IIM
// stream (as stored by TIFF tag 0x83BB).
func decodeIPTC(data []byte, rec *core.Record) {
	if bytes.HasPrefix(data, []byte(irbSig)) {
		decodeIRB(data, rec)
		return
	}
	decodeIIM(data, rec)
}

// decodeIRB walks 8BIM resources and decodes the IPTC-NAA resource.
func decodeIRB(data []byte, rec *core.Record) {
	i := 0
	for i+12 <= len(data) {
		if string(data[i:i+4]) != irbSig {
			rec.Add(core.Entry{
				Key:   core.Key{Namespace: core.NSIPTC, ID: "resources"},
				Name:  "PhotoshopResources",
				Value: core.Unreadable(fmt.Sprintf("bad resource signature at offset %d", i)),
			})
			return
		}
		resType := binary.BigEndian.Uint16(data[i+4 : i+6])
		// Pascal name padded to an even total size.
		nameLen := int(data[i+6])
		nameLen += 1 - nameLen%2
		i += 6 + 1 + nameLen
		if i+4 > len(data) {
			return
		}
		blockLen := int(binary.BigEndian.Uint32(data[i : i+4]))
		i += 4
		if blockLen < 0 || i+blockLen > len(data) {
			rec.Add(core.Entry{
				Key:   core.Key{Namespace: core.NSIPTC, ID: "resources"},
				Name:  "PhotoshopResources",
				Value: core.Unreadable(fmt.Sprintf("resource 0x%04x overruns block", resType)),
			})
			return
		}
		if resType == irbIPTC {
			decodeIIM(data[i:i+blockLen], rec)
		}
		i += blockLen + blockLen%2
	}
}

// decodeIIM decodes IPTC datasets (0x1C record dataset length value).
// Repeated datasets such as Keywords are joined.
func decodeIIM(data []byte, rec *core.Record) {
	type dataset struct {
		key        core.Key
		record, id byte
	}
	var (
		order  []dataset
		values = map[core.Key][]string{}
	)
	i := 0
	for i+5 <= len(data) {
		if data[i] != iimTagMark {
			break
		}
		record, ds := data[i+1], data[i+2]
		key := core.Key{Namespace: core.NSIPTC, ID: fmt.Sprintf("%d:%03d", record, ds)}
		length := int(binary.BigEndian.Uint16(data[i+3 : i+5]))
		i += 5
		if length&0x8000 != 0 {
			// Extended dataset: the low bits give the size of the length field.
			n := length & 0x7FFF
			rec.Add(core.Entry{Key: key, Name: iimName(record, ds), Value: core.Unreadable("extended-length dataset")})
			if n > 4 || i+n > len(data) {
				break
			}
			var size int
			for _, b := range data[i : i+n] {
				size = size<<8 | int(b)
			}
			i += n
			if size < 0 || i+size > len(data) {
				break
			}
			i += size
			continue
		}
		if i+length > len(data) {
			rec.Add(core.Entry{Key: key, Name: iimName(record, ds), Value: core.Unreadable("dataset overruns block")})
			break
		}
		if _, ok := values[key]; !ok {
			order = append(order, dataset{key, record, ds})
		}
		values[key] = append(values[key], textString(data[i:i+length]))
		i += length
	}
	for _, d := range order {
		rec.Add(core.Entry{
			Key:   d.key,
			Name:  iimName(d.record, d.id),
			Value: core.StringValue(strings.Join(values[d.key], "; ")),
		})
	}
}

func iimName(record, dataset byte) string {
	if record == 2 {
		if name, ok := iptcNames[dataset]; ok {
			return name
		}
	}
	return fmt.Sprintf("%d:%03d", record, dataset)
}
