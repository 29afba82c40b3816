package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Printer renders results for the CLI.
type Printer struct {
	JSON  bool
	Color bool
	W     io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, jsonMode, color bool) *Printer {
	return &Printer{JSON: jsonMode, Color: color, W: w}
}

// PrintRecords renders the decoded metadata of every result.
func (p *Printer) PrintRecords(results []Result) error {
	if p.JSON {
		out := make([]jsonRecord, 0, len(results))
		for _, r := range results {
			out = append(out, newJSONRecord(r))
		}
		return p.writeJSON(out)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(p.W)
		}
		p.printRecord(r)
	}
	return nil
}

func (p *Printer) printRecord(r Result) {
	fmt.Fprintf(p.W, "File  : %s\n", r.InputPath)
	if r.Status == StatusFailed || r.Status == StatusSkipped {
		fmt.Fprintf(p.W, "Status: %s (%s)\n", r.Status, describe(r))
		return
	}
	fmt.Fprintf(p.W, "Format: %s\n", r.Format)
	fmt.Fprintf(p.W, "Size  : %s\n", humanSize(r.Info.Size))
	if r.Info.Width > 0 {
		fmt.Fprintf(p.W, "Pixels: %dx%d\n", r.Info.Width, r.Info.Height)
	}
	if !r.Info.ModTime.IsZero() {
		fmt.Fprintf(p.W, "Mtime : %s\n", r.Info.ModTime.Format(time.RFC3339))
	}
	if r.Record.Len() == 0 {
		fmt.Fprintln(p.W, "(no metadata found)")
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Namespace", "Tag", "Name", "Value"})
	for _, e := range r.Record.Entries() {
		name := e.Name
		if p.Color {
			name = levelColor(Sensitivity(e.Name)).Sprint(name)
		}
		tw.AppendRow(table.Row{string(e.Key.Namespace), e.Key.ID, name, truncate(e.Value.String(), 80)})
	}
	fmt.Fprintln(p.W, tw.Render())

	c := r.Record.SensitivitySummary()
	fmt.Fprintf(p.W, "Insecure: %d  Better to remove: %d  Safe to share: %d  Unrecognized: %d  (total %d)\n",
		c.Insecure, c.RemoveAdvised, c.Safe, c.Unrecognized, c.Total())
}

// PrintResults renders one row per clean or check outcome.
func (p *Printer) PrintResults(results []Result) error {
	if p.JSON {
		out := make([]jsonResult, 0, len(results))
		for _, r := range results {
			out = append(out, newJSONResult(r))
		}
		return p.writeJSON(out)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Format", "Status", "Removed", "Size Δ", "Output"})
	for _, r := range results {
		status := r.Status.String()
		if r.Status == StatusFailed || r.Status == StatusSkipped {
			status += ": " + describe(r)
		}
		if p.Color {
			status = statusColor(r.Status).Sprint(status)
		}
		tw.AppendRow(table.Row{r.InputPath, string(r.Format), status, r.RemovedTagCount, signedSize(r.SizeDelta), r.OutputPath})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	fmt.Fprintln(p.W, tw.Render())

	s := Summarize(results)
	fmt.Fprintf(p.W, "%d file(s): %d succeeded, %d previewed, %d skipped, %d failed, %d tag(s) removed\n",
		s.Total, s.Succeeded, s.Previewed, s.Skipped, s.Failed, s.Removed)

	for _, r := range results {
		for _, note := range r.Retained {
			fmt.Fprintf(p.W, "retained in %s: %s\n", r.InputPath, note)
		}
	}
	return nil
}

func (p *Printer) writeJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.W, string(b))
	return err
}

type jsonEntry struct {
	Namespace   string `json:"namespace"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Sensitivity string `json:"sensitivity"`
}

type jsonRecord struct {
	File        string             `json:"file"`
	Format      string             `json:"format,omitempty"`
	Status      string             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Size        int64              `json:"size"`
	Width       int                `json:"width,omitempty"`
	Height      int                `json:"height,omitempty"`
	Modified    string             `json:"modified,omitempty"`
	Sensitivity *SensitivityCounts `json:"sensitivity,omitempty"`
	Entries     []jsonEntry        `json:"entries"`
}

func newJSONRecord(r Result) jsonRecord {
	out := jsonRecord{
		File:    r.InputPath,
		Format:  string(r.Format),
		Status:  r.Status.String(),
		Size:    r.Info.Size,
		Width:   r.Info.Width,
		Height:  r.Info.Height,
		Entries: []jsonEntry{},
	}
	if r.Status == StatusFailed || r.Status == StatusSkipped {
		out.Error = describe(r)
	}
	if !r.Info.ModTime.IsZero() {
		out.Modified = r.Info.ModTime.Format(time.RFC3339)
	}
	if r.Record != nil {
		c := r.Record.SensitivitySummary()
		out.Sensitivity = &c
	}
	for _, e := range r.Record.Entries() {
		out.Entries = append(out.Entries, jsonEntry{
			Namespace:   string(e.Key.Namespace),
			ID:          e.Key.ID,
			Name:        e.Name,
			Type:        e.Value.Kind.String(),
			Value:       e.Value.String(),
			Sensitivity: Sensitivity(e.Name).String(),
		})
	}
	return out
}

type jsonResult struct {
	File      string   `json:"file"`
	Format    string   `json:"format,omitempty"`
	Status    string   `json:"status"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Error     string   `json:"error,omitempty"`
	Removed   []string `json:"removed"`
	SizeDelta int64    `json:"size_delta"`
	Output    string   `json:"output,omitempty"`
	Retained  []string `json:"retained,omitempty"`
}

func newJSONResult(r Result) jsonResult {
	out := jsonResult{
		File:      r.InputPath,
		Format:    string(r.Format),
		Status:    r.Status.String(),
		Removed:   make([]string, 0, len(r.Removed)),
		SizeDelta: r.SizeDelta,
		Output:    r.OutputPath,
		Retained:  r.Retained,
	}
	if r.Kind != KindNone {
		out.ErrorKind = r.Kind.String()
	}
	if r.Status == StatusFailed || r.Status == StatusSkipped {
		out.Error = describe(r)
	}
	for _, k := range r.Removed {
		out.Removed = append(out.Removed, k.String())
	}
	return out
}

func describe(r Result) string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Reason != "":
		return r.Reason
	default:
		return r.Kind.String()
	}
}

func levelColor(l Level) text.Colors {
	switch l {
	case Insecure:
		return text.Colors{text.FgRed}
	case RemoveAdvised:
		return text.Colors{text.FgYellow}
	case Safe:
		return text.Colors{text.FgGreen}
	default:
		return text.Colors{}
	}
}

func statusColor(s Status) text.Colors {
	switch s {
	case StatusSuccess:
		return text.Colors{text.FgGreen}
	case StatusDryRunPreview:
		return text.Colors{text.FgCyan}
	case StatusSkipped:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed}
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func signedSize(n int64) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
