package core

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Namespace groups decoded tags by the encoding they came from.
type Namespace string

const (
	NSEXIF Namespace = "EXIF"
	NSGPS  Namespace = "GPS"
	NSIPTC Namespace = "IPTC"
	NSXMP  Namespace = "XMP"
	NSPNG  Namespace = "PNG"
	NSJPEG Namespace = "JPEG"
)

// ValueKind identifies how a Value is populated.
type ValueKind int

const (
	KindInteger ValueKind = iota
	KindRational
	KindFloat
	KindString
	KindBytes
	KindGPSCoordinate
	KindUnreadable
)

var valueKindNames = map[ValueKind]string{
	KindInteger:       "integer",
	KindRational:      "rational",
	KindFloat:         "float",
	KindString:        "string",
	KindBytes:         "bytes",
	KindGPSCoordinate: "gps",
	KindUnreadable:    "unreadable",
}

func (k ValueKind) String() string { return valueKindNames[k] }

// Rational is a numerator/denominator pair as stored in EXIF.
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Value is a typed tag value.
type Value struct {
	Kind      ValueKind
	Ints      []int64
	Rationals []Rational
	Floats    []float64
	Str       string
	Bytes     []byte
	Lat, Lon  float64
	// Reason explains an Unreadable value.
	Reason string
}

// IntValue builds an integer value.
func IntValue(v ...int64) Value { return Value{Kind: KindInteger, Ints: v} }

// RationalValue builds a rational value.
func RationalValue(v ...Rational) Value { return Value{Kind: KindRational, Rationals: v} }

// FloatValue builds a floating point value.
func FloatValue(v ...float64) Value { return Value{Kind: KindFloat, Floats: v} }

// StringValue builds a text value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BytesValue builds a raw byte value.
func BytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// GPSValue builds a decimal-degree coordinate pair.
func GPSValue(lat, lon float64) Value { return Value{Kind: KindGPSCoordinate, Lat: lat, Lon: lon} }

// Unreadable marks a tag whose value could not be decoded.
func Unreadable(reason string) Value { return Value{Kind: KindUnreadable, Reason: reason} }

const maxBytesShown = 32

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		parts := make([]string, len(v.Ints))
		for i, n := range v.Ints {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ", ")
	case KindRational:
		parts := make([]string, len(v.Rationals))
		for i, r := range v.Rationals {
			parts[i] = r.String()
		}
		return strings.Join(parts, ", ")
	case KindFloat:
		parts := make([]string, len(v.Floats))
		for i, f := range v.Floats {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ", ")
	case KindString:
		return v.Str
	case KindBytes:
		if len(v.Bytes) > maxBytesShown {
			return fmt.Sprintf("%s… (%d bytes)", hex.EncodeToString(v.Bytes[:maxBytesShown]), len(v.Bytes))
		}
		return hex.EncodeToString(v.Bytes)
	case KindGPSCoordinate:
		return fmt.Sprintf("%.6f, %.6f", v.Lat, v.Lon)
	case KindUnreadable:
		if v.Reason == "" {
			return "(unreadable)"
		}
		return "(unreadable: " + v.Reason + ")"
	default:
		return ""
	}
}

// Key identifies a tag. ID is the encoding-native identifier ("0x010f",
// "2:025", a PNG keyword, ...).
type Key struct {
	Namespace Namespace
	ID        string
}

func (k Key) String() string { return string(k.Namespace) + ":" + k.ID }

// Entry is one decoded tag.
type Entry struct {
	Key   Key
	Name  string // Human-readable name; equals Key.ID for unknown tags
	Value Value
}

// Record is the decoded, read-only metadata of one file.
type Record struct {
	entries map[Key]Entry
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{entries: make(map[Key]Entry)}
}

// Add inserts an entry. The first entry for a key wins.
func (r *Record) Add(e Entry) {
	if e.Name == "" {
		e.Name = e.Key.ID
	}
	if _, ok := r.entries[e.Key]; ok {
		return
	}
	r.entries[e.Key] = e
}

// Merge copies every entry of other into r.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		r.Add(e)
	}
}

// Len returns the number of entries.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Get looks up an entry by key.
func (r *Record) Get(k Key) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	e, ok := r.entries[k]
	return e, ok
}

// Lookup finds the first entry in ns whose Name matches name.
func (r *Record) Lookup(ns Namespace, name string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Key.Namespace == ns && e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns all entries sorted by namespace then ID.
func (r *Record) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Namespace != out[j].Key.Namespace {
			return out[i].Key.Namespace < out[j].Key.Namespace
		}
		return out[i].Key.ID < out[j].Key.ID
	})
	return out
}

// Keys returns all keys in Entries order.
func (r *Record) Keys() []Key {
	entries := r.Entries()
	keys := make([]Key, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Namespaces returns the distinct namespaces present, sorted.
func (r *Record) Namespaces() []Namespace {
	seen := map[Namespace]bool{}
	var out []Namespace
	for _, e := range r.Entries() {
		if !seen[e.Key.Namespace] {
			seen[e.Key.Namespace] = true
			out = append(out, e.Key.Namespace)
		}
	}
	return out
}

// Diff returns the keys present in r but absent from other.
func (r *Record) Diff(other *Record) []Key {
	var out []Key
	for _, k := range r.Keys() {
		if _, ok := other.Get(k); !ok {
			out = append(out, k)
		}
	}
	return out
}
