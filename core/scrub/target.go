package scrub

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

// DefaultSuffix is appended to copies made beside the original.
const DefaultSuffix = "_clean"

// TargetPath names the output of a copy-mode clean: OutputDir/<base> when
// an output directory is set, else <dir>/<stem><suffix><ext>.
func TargetPath(input string, opts Options) (string, error) {
	base := filepath.Base(input)
	var target string
	if dir := strings.TrimSpace(opts.OutputDir); dir != "" {
		target = filepath.Join(dir, base)
	} else {
		suffix := opts.Suffix
		if suffix == "" {
			suffix = DefaultSuffix
		}
		ext := filepath.Ext(base)
		target = filepath.Join(filepath.Dir(input), strings.TrimSuffix(base, ext)+suffix+ext)
	}

	in, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w: %v", input, core.ErrIOFailure, err)
	}
	out, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w: %v", target, core.ErrIOFailure, err)
	}
	if in == out {
		return "", fmt.Errorf("%s: copy target is the input file: %w", target, core.ErrOutputExists)
	}
	return target, nil
}
