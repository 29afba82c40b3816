package core

import (
	"fmt"
	"sort"
)

// RemovalPlan is the per-file decision of which segments to drop. It is
// built once before any write and never modified afterwards.
type RemovalPlan struct {
	// Strip holds the indices of segments to remove. Every other segment
	// is kept.
	Strip map[int]bool
	// Retained notes metadata that survives the clean, one line per item.
	Retained []string
}

// Empty reports whether the plan removes nothing.
func (p *RemovalPlan) Empty() bool {
	if p == nil {
		return true
	}
	for _, strip := range p.Strip {
		if strip {
			return false
		}
	}
	return true
}

// Stripped returns the stripped indices in file order.
func (p *RemovalPlan) Stripped() []int {
	if p == nil {
		return nil
	}
	out := make([]int, 0, len(p.Strip))
	for i, strip := range p.Strip {
		if strip {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// Kept returns the indices of the segments of c the plan keeps, in file
// order.
func (p *RemovalPlan) Kept(c *Container) []int {
	out := make([]int, 0, len(c.Segments))
	for i := range c.Segments {
		if p == nil || !p.Strip[i] {
			out = append(out, i)
		}
	}
	return out
}

// BuildPlan applies the common policy: every EXIF, IPTC and XMP segment and
// every non-ambiguous MetadataOther segment is stripped. Ambiguous segments
// are kept and noted.
func BuildPlan(c *Container) *RemovalPlan {
	p := &RemovalPlan{Strip: make(map[int]bool)}
	for i, s := range c.Segments {
		switch {
		case s.Kind == MetadataOther && s.Ambiguous:
			p.Retained = append(p.Retained, fmt.Sprintf("%s segment at offset %d (unrecognised signature)", s.Name, s.Offset))
		case s.Kind.IsMetadata():
			p.Strip[i] = true
		}
	}
	return p
}

// KeptBytes concatenates the kept segments of c in order.
func (p *RemovalPlan) KeptBytes(c *Container) []byte {
	kept := p.Kept(c)
	var n int64
	for _, i := range kept {
		n += c.Segments[i].Len()
	}
	out := make([]byte, 0, n)
	for _, i := range kept {
		out = append(out, c.Segments[i].Raw...)
	}
	return out
}
