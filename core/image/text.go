package image

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

// maxInflate bounds decompressed text chunks.
const maxInflate = 8 << 20

var errInflateLimit = errors.New("decompressed text exceeds limit")

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflate+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflate {
		return nil, errInflateLimit
	}
	return out, nil
}

func latin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// textString decodes bytes of unknown encoding: UTF-8 when valid, otherwise
// Latin-1. Trailing NULs are dropped.
func textString(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	if utf8.Valid(b) {
		return string(b)
	}
	return latin1(b)
}

func decodePNGText(typ string, body []byte, rec *core.Record, opts core.DecodeOptions) {
	kw := keyword(body)
	if kw == "" {
		rec.Add(core.Entry{
			Key:   core.Key{Namespace: core.NSPNG, ID: typ},
			Value: core.Unreadable("missing keyword"),
		})
		return
	}
	rest := body[len(kw)+1:]

	text, err := pngTextValue(typ, rest)
	if kw == xmpKeyword {
		if err != nil {
			rec.Add(core.Entry{Key: core.Key{Namespace: core.NSXMP, ID: "packet"}, Name: "XMPPacket", Value: core.Unreadable(err.Error())})
			return
		}
		decodeXMP([]byte(text), rec, opts)
		return
	}
	key := core.Key{Namespace: core.NSPNG, ID: kw}
	if err != nil {
		rec.Add(core.Entry{Key: key, Value: core.Unreadable(err.Error())})
		return
	}
	rec.Add(core.Entry{Key: key, Value: core.StringValue(text)})
}

// pngTextValue decodes the part of a text chunk after the keyword separator.
func pngTextValue(typ string, rest []byte) (string, error) {
	switch typ {
	case "tEXt":
		return latin1(rest), nil
	case "zTXt":
		if len(rest) < 1 {
			return "", errors.New("zTXt: missing compression method")
		}
		if rest[0] != 0 {
			return "", fmt.Errorf("zTXt: unknown compression method %d", rest[0])
		}
		out, err := inflate(rest[1:])
		if err != nil {
			return "", fmt.Errorf("zTXt: %v", err)
		}
		return latin1(out), nil
	case "iTXt":
		if len(rest) < 2 {
			return "", errors.New("iTXt: missing compression fields")
		}
		compressed, method := rest[0], rest[1]
		rest = rest[2:]
		// Language tag and translated keyword, both NUL terminated.
		for i := 0; i < 2; i++ {
			n := bytes.IndexByte(rest, 0)
			if n < 0 {
				return "", errors.New("iTXt: unterminated header")
			}
			rest = rest[n+1:]
		}
		if compressed == 1 {
			if method != 0 {
				return "", fmt.Errorf("iTXt: unknown compression method %d", method)
			}
			out, err := inflate(rest)
			if err != nil {
				return "", fmt.Errorf("iTXt: %v", err)
			}
			rest = out
		}
		if !utf8.Valid(rest) {
			return strings.ToValidUTF8(string(rest), "�"), nil
		}
		return string(rest), nil
	}
	return "", fmt.Errorf("unsupported text chunk %s", typ)
}
