package image

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

const nsRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// Prefixes for namespaces whose packets omit or rename the declaration.
var xmpPrefixes = map[string]string{
	nsRDF:                                          "rdf",
	"adobe:ns:meta/":                               "x",
	"http://purl.org/dc/elements/1.1/":             "dc",
	"http://ns.adobe.com/xap/1.0/":                 "xmp",
	"http://ns.adobe.com/xap/1.0/mm/":              "xmpMM",
	"http://ns.adobe.com/xap/1.0/rights/":          "xmpRights",
	"http://ns.adobe.com/exif/1.0/":                "exif",
	"http://ns.adobe.com/tiff/1.0/":                "tiff",
	"http://ns.adobe.com/photoshop/1.0/":           "photoshop",
	"http://ns.adobe.com/camera-raw-settings/1.0/": "crs",
	"http://ns.adobe.com/exif/1.0/aux/":            "aux",
	"http://iptc.org/std/Iptc4xmpCore/1.0/xmlns/":  "Iptc4xmpCore",
	"http://ns.google.com/photos/1.0/panorama/":    "GPano",
}

// decodeXMP records the packet as a single opaque entry and, when asked,
// its individual properties.
func decodeXMP(packet []byte, rec *core.Record, opts core.DecodeOptions) {
	rec.Add(core.Entry{
		Key:   core.Key{Namespace: core.NSXMP, ID: "packet"},
		Name:  "XMPPacket",
		Value: core.StringValue(string(bytes.TrimSpace(bytes.TrimRight(packet, "\x00")))),
	})
	if opts.XMPProperties {
		decodeXMPProperties(packet, rec)
	}
}

// decodeXMPProperties flattens an RDF packet into prefix:local entries.
// Array items (rdf:li) are joined onto their enclosing property.
func decodeXMPProperties(packet []byte, rec *core.Record) {
	dec := xml.NewDecoder(bytes.NewReader(packet))
	dec.Strict = false

	prefixes := make(map[string]string, len(xmpPrefixes))
	for uri, p := range xmpPrefixes {
		prefixes[uri] = p
	}
	qualify := func(n xml.Name) string {
		if p, ok := prefixes[n.Space]; ok {
			return p + ":" + n.Local
		}
		if n.Space == "" {
			return n.Local
		}
		return n.Space + ":" + n.Local
	}

	var (
		order  []string
		values = map[string][]string{}
		stack  []xml.Name
	)
	add := func(prop, val string) {
		if _, ok := values[prop]; !ok {
			order = append(order, prop)
		}
		values[prop] = append(values[prop], val)
	}
	// property returns the innermost non-RDF element on the stack.
	property := func() (xml.Name, bool) {
		for i := len(stack) - 1; i >= 0; i-- {
			n := stack[i]
			if n.Space == nsRDF || n.Space == "adobe:ns:meta/" {
				continue
			}
			return n, true
		}
		return xml.Name{}, false
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			for _, attr := range t.Attr {
				if attr.Name.Space != "xmlns" {
					continue
				}
				if _, known := prefixes[attr.Value]; !known {
					prefixes[attr.Value] = attr.Name.Local
				}
			}
			for _, attr := range t.Attr {
				if attr.Name.Space == "" || attr.Name.Space == "xmlns" || attr.Name.Space == nsRDF || attr.Value == "" {
					continue
				}
				add(qualify(attr.Name), attr.Value)
			}
			stack = append(stack, t.Name)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			val := strings.TrimSpace(string(t))
			if val == "" {
				continue
			}
			if n, ok := property(); ok {
				add(qualify(n), val)
			}
		}
	}

	for _, prop := range order {
		rec.Add(core.Entry{
			Key:   core.Key{Namespace: core.NSXMP, ID: prop},
			Name:  prop,
			Value: core.StringValue(strings.Join(values[prop], "; ")),
		})
	}
}
