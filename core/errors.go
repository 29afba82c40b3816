package core

import (
	"context"
	"errors"
)

// Sentinel errors. Callers wrap them with fmt.Errorf("...: %w", err) and
// test with errors.Is or KindOf.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptContainer  = errors.New("corrupt container")
	ErrTruncatedData     = errors.New("truncated data")
	ErrOutputExists      = errors.New("output exists")
	ErrIOFailure         = errors.New("i/o failure")
	ErrCanceled          = errors.New("canceled")
)

// ErrorKind is the per-file failure category reported in a Result.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnsupportedFormat
	KindCorruptContainer
	KindTruncatedData
	KindOutputExists
	KindIOFailure
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindCorruptContainer:
		return "CorruptContainer"
	case KindTruncatedData:
		return "TruncatedData"
	case KindOutputExists:
		return "OutputExists"
	case KindIOFailure:
		return "IOFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "unknown"
	}
}

// KindOf maps an error onto the taxonomy. Errors that match no sentinel
// are treated as I/O failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrCorruptContainer):
		return KindCorruptContainer
	case errors.Is(err, ErrTruncatedData):
		return KindTruncatedData
	case errors.Is(err, ErrOutputExists):
		return KindOutputExists
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindIOFailure
	}
}
