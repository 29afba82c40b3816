package core

import "time"

// Status is the final state of one file operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusDryRunPreview
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusDryRunPreview:
		return "dry-run"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OK reports whether the status counts towards a zero exit code.
func (s Status) OK() bool { return s == StatusSuccess || s == StatusDryRunPreview }

// FileInfo is the non-metadata description of an input file.
type FileInfo struct {
	Size    int64
	ModTime time.Time
	Width   int
	Height  int
}

// Result is the outcome of processing one file.
type Result struct {
	InputPath  string
	Format     Format
	Status     Status
	Kind       ErrorKind
	Err        error
	OutputPath string
	// Removed lists the tags a clean removed (or would remove in dry-run).
	Removed         []Key
	RemovedTagCount int
	// SizeDelta is output length minus input length.
	SizeDelta int64
	Retained  []string
	Record    *Record
	Info      FileInfo
	// Reason gives context for Skipped results.
	Reason string
}

// Fail fills in a failed result from err.
func (r *Result) Fail(err error) {
	r.Status = StatusFailed
	r.Kind = KindOf(err)
	r.Err = err
}

// HasMetadata reports whether the decoded record carries any entries.
func (r *Result) HasMetadata() bool { return r.Record.Len() > 0 }

// Summary tallies a batch of results.
type Summary struct {
	Total     int
	Succeeded int
	Previewed int
	Skipped   int
	Failed    int
	Removed   int
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusDryRunPreview:
			s.Previewed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
		s.Removed += r.RemovedTagCount
	}
	return s
}

// AllOK reports whether every result succeeded or was previewed.
func (s Summary) AllOK() bool { return s.Succeeded+s.Previewed == s.Total }
