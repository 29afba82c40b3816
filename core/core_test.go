package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name   string
		prefix []byte
		want   core.Format
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10}, core.FmtJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13}, core.FmtPNG},
		{"tiff little endian", []byte{'I', 'I', 0x2A, 0, 8, 0, 0, 0}, core.FmtTIFF},
		{"tiff big endian", []byte{'M', 'M', 0, 0x2A, 0, 0, 0, 8}, core.FmtTIFF},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBPVP8L"), core.FmtWebP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := core.Detect(tc.prefix)
			if err != nil {
				t.Fatalf("Detect returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestDetectRejectsUnknownAndTruncated(t *testing.T) {
	for _, prefix := range [][]byte{
		nil,
		{0xFF, 0xD8},
		[]byte("GIF89a"),
		[]byte("RIFF\x10\x00\x00\x00WAVE"),
		[]byte("RIFF\x10\x00"),
		[]byte("%PDF-1.7"),
	} {
		got, err := core.Detect(prefix)
		if !errors.Is(err, core.ErrUnsupportedFormat) {
			t.Fatalf("Detect(%q): expected ErrUnsupportedFormat, got %v", prefix, err)
		}
		if got != core.FmtUnknown {
			t.Fatalf("Detect(%q): expected unknown format, got %q", prefix, got)
		}
	}
}

func TestDetectFileIgnoresExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := core.DetectFile(path); !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	_, err := core.DetectFile(filepath.Join(dir, "missing.png"))
	if core.KindOf(err) != core.KindIOFailure {
		t.Fatalf("expected IOFailure for missing file, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want core.ErrorKind
	}{
		{nil, core.KindNone},
		{fmt.Errorf("parse: %w", core.ErrCorruptContainer), core.KindCorruptContainer},
		{fmt.Errorf("parse: %w", core.ErrTruncatedData), core.KindTruncatedData},
		{fmt.Errorf("copy: %w", core.ErrOutputExists), core.KindOutputExists},
		{fmt.Errorf("sniff: %w", core.ErrUnsupportedFormat), core.KindUnsupportedFormat},
		{context.Canceled, core.KindCanceled},
		{errors.New("disk on fire"), core.KindIOFailure},
	}
	for _, tc := range cases {
		if got := core.KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRecordFirstWinsAndSorted(t *testing.T) {
	r := core.NewRecord()
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSEXIF, ID: "0x0110"}, Name: "Model", Value: core.StringValue("first")})
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSEXIF, ID: "0x0110"}, Name: "Model", Value: core.StringValue("second")})
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSEXIF, ID: "0x010f"}, Name: "Make", Value: core.StringValue("Acme")})
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSGPS, ID: "Position"}, Value: core.GPSValue(1.5, -2.25)})

	if r.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", r.Len())
	}
	e, ok := r.Get(core.Key{Namespace: core.NSEXIF, ID: "0x0110"})
	if !ok || e.Value.Str != "first" {
		t.Fatalf("expected first value to win, got %+v", e)
	}
	keys := r.Keys()
	want := []string{"EXIF:0x010f", "EXIF:0x0110", "GPS:Position"}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Fatalf("key %d: got %s want %s", i, k, want[i])
		}
	}
	gps, _ := r.Get(core.Key{Namespace: core.NSGPS, ID: "Position"})
	if gps.Name != "Position" {
		t.Fatalf("expected name to default to ID, got %q", gps.Name)
	}
	if got := gps.Value.String(); got != "1.500000, -2.250000" {
		t.Fatalf("unexpected gps rendering %q", got)
	}
}

func TestRecordDiff(t *testing.T) {
	before := core.NewRecord()
	after := core.NewRecord()
	keep := core.Key{Namespace: core.NSPNG, ID: "Software"}
	drop := core.Key{Namespace: core.NSEXIF, ID: "0x010f"}
	before.Add(core.Entry{Key: keep, Value: core.StringValue("x")})
	before.Add(core.Entry{Key: drop, Value: core.StringValue("y")})
	after.Add(core.Entry{Key: keep, Value: core.StringValue("x")})

	diff := before.Diff(after)
	if len(diff) != 1 || diff[0] != drop {
		t.Fatalf("unexpected diff %v", diff)
	}
	if len(after.Diff(before)) != 0 {
		t.Fatal("expected empty reverse diff")
	}
}

func TestValueString(t *testing.T) {
	cases := []struct {
		v    core.Value
		want string
	}{
		{core.IntValue(1, 2, 3), "1, 2, 3"},
		{core.RationalValue(core.Rational{Num: 72, Den: 1}, core.Rational{Num: 1, Den: 250}), "72, 1/250"},
		{core.FloatValue(0.5), "0.5"},
		{core.BytesValue([]byte{0xde, 0xad}), "dead"},
		{core.Unreadable("bad type"), "(unreadable: bad type)"},
	}
	for _, tc := range cases {
		if got := tc.v.String(); got != tc.want {
			t.Fatalf("%s value: got %q want %q", tc.v.Kind, got, tc.want)
		}
	}
}

func TestBuildPlan(t *testing.T) {
	c := &core.Container{Format: core.FmtJPEG, Segments: []core.Segment{
		{Kind: core.Structural, Name: "SOI", Raw: []byte{0xFF, 0xD8}},
		{Kind: core.MetadataEXIF, Name: "APP1", Offset: 2, Raw: []byte("exif")},
		{Kind: core.MetadataOther, Name: "APP1", Offset: 6, Raw: []byte("odd"), Ambiguous: true},
		{Kind: core.MetadataOther, Name: "COM", Offset: 9, Raw: []byte("c")},
		{Kind: core.MetadataXMP, Name: "APP1", Offset: 10, Raw: []byte("xmp")},
		{Kind: core.PixelData, Name: "SOS", Offset: 13, Raw: []byte("scan")},
	}}
	p := core.BuildPlan(c)

	wantKeep := []int{0, 2, 5}
	if got := p.Kept(c); fmt.Sprint(got) != fmt.Sprint(wantKeep) {
		t.Fatalf("keep: got %v want %v", got, wantKeep)
	}
	if fmt.Sprint(p.Stripped()) != fmt.Sprint([]int{1, 3, 4}) {
		t.Fatalf("unexpected stripped %v", p.Stripped())
	}
	if len(p.Retained) != 1 {
		t.Fatalf("expected one retained note, got %v", p.Retained)
	}
	if got := string(p.KeptBytes(c)); got != "\xFF\xD8oddscan" {
		t.Fatalf("unexpected kept bytes %q", got)
	}
	if p.Empty() {
		t.Fatal("plan should not be empty")
	}
}

func TestPlanKeptFollowsStrip(t *testing.T) {
	c := &core.Container{Segments: []core.Segment{
		{Raw: []byte("ab")}, {Raw: []byte("cd")}, {Raw: []byte("ef")},
	}}
	var nilPlan *core.RemovalPlan
	for _, p := range []*core.RemovalPlan{nilPlan, {}, {Strip: map[int]bool{1: false}}} {
		if !p.Empty() {
			t.Fatalf("plan %+v should be empty", p)
		}
		if got := string(p.KeptBytes(c)); got != "abcdef" {
			t.Fatalf("plan %+v kept %q", p, got)
		}
	}
	p := &core.RemovalPlan{Strip: map[int]bool{0: false, 1: true}}
	if p.Empty() || fmt.Sprint(p.Kept(c)) != "[0 2]" || fmt.Sprint(p.Stripped()) != "[1]" {
		t.Fatalf("kept %v stripped %v", p.Kept(c), p.Stripped())
	}
}

func TestContainerBytesRoundTrip(t *testing.T) {
	c := &core.Container{Segments: []core.Segment{
		{Raw: []byte("ab")}, {Raw: []byte("cde")}, {Raw: nil}, {Raw: []byte("f")},
	}}
	if string(c.Bytes()) != "abcdef" || c.Len() != 6 {
		t.Fatalf("unexpected reassembly %q (%d)", c.Bytes(), c.Len())
	}
}

func TestSensitivity(t *testing.T) {
	cases := map[string]core.Level{
		"GPSLatitude":      core.Insecure,
		"GPSPosition":      core.Insecure,
		"DateTimeOriginal": core.Insecure,
		"ImageUniqueID":    core.Insecure,
		"Make":             core.RemoveAdvised,
		"ISOSpeedRatings":  core.RemoveAdvised,
		"Keywords":         core.RemoveAdvised,
		"ImageWidth":       core.Safe,
		"IFD1/Compression": core.Safe,
		"XResolution":      core.Safe,
		"0x9999":           core.Unrecognized,
	}
	for name, want := range cases {
		if got := core.Sensitivity(name); got != want {
			t.Fatalf("Sensitivity(%q) = %s, want %s", name, got, want)
		}
	}

	r := core.NewRecord()
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSGPS, ID: "0x0002"}, Name: "GPSLatitude"})
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSEXIF, ID: "0x010f"}, Name: "Make"})
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSEXIF, ID: "0x0100"}, Name: "ImageWidth"})
	r.Add(core.Entry{Key: core.Key{Namespace: core.NSEXIF, ID: "0xc4a5"}})
	c := r.SensitivitySummary()
	if c.Insecure != 1 || c.RemoveAdvised != 1 || c.Safe != 1 || c.Unrecognized != 1 || c.Total() != 4 {
		t.Fatalf("unexpected summary %+v", c)
	}
}

func TestSummarize(t *testing.T) {
	s := core.Summarize([]core.Result{
		{Status: core.StatusSuccess, RemovedTagCount: 3},
		{Status: core.StatusDryRunPreview, RemovedTagCount: 2},
		{Status: core.StatusFailed},
		{Status: core.StatusSkipped},
	})
	if s.Total != 4 || s.Succeeded != 1 || s.Previewed != 1 || s.Failed != 1 || s.Skipped != 1 || s.Removed != 5 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.AllOK() {
		t.Fatal("expected AllOK false")
	}
}
