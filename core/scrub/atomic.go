package scrub

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

// writeTemp writes data to a new temporary file in dir, syncs it and sets
// its permissions. The caller owns the returned path.
func (e *Engine) writeTemp(dir, base string, data []byte, perm fs.FileMode) (string, error) {
	tmp, err := e.createTemp(dir, "."+base+".surgery-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w: %v", core.ErrIOFailure, err)
	}
	name := tmp.Name()
	fail := func(step string, err error) (string, error) {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("%s temp file: %w: %v", step, core.ErrIOFailure, err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp file: %w: %v", core.ErrIOFailure, err)
	}
	return name, nil
}

// replace swaps path for data. The original is untouched unless the final
// rename succeeds.
func (e *Engine) replace(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := e.writeTemp(dir, filepath.Base(path), data, perm)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", core.ErrCanceled, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename over %s: %w: %v", path, core.ErrIOFailure, err)
	}
	if err := syncDir(dir); err != nil {
		e.logger.Warn("directory sync failed", "dir", dir, "error", err)
	}
	return nil
}

// publishCopy writes data to target. Without overwrite an existing target
// is never replaced, even one created while the temp file was written.
func (e *Engine) publishCopy(ctx context.Context, target string, data []byte, perm fs.FileMode, overwrite bool) error {
	if !overwrite {
		if _, err := os.Lstat(target); err == nil {
			return fmt.Errorf("%s: %w", target, core.ErrOutputExists)
		}
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w: %v", core.ErrIOFailure, err)
	}
	tmp, err := e.writeTemp(dir, filepath.Base(target), data, perm)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", core.ErrCanceled, err)
	}

	if overwrite {
		err = os.Rename(tmp, target)
	} else {
		err = renameNoReplace(tmp, target)
	}
	if err != nil {
		os.Remove(tmp)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", target, core.ErrOutputExists)
		}
		return fmt.Errorf("publish %s: %w: %v", target, core.ErrIOFailure, err)
	}
	if err := syncDir(dir); err != nil {
		e.logger.Warn("directory sync failed", "dir", dir, "error", err)
	}
	return nil
}

// linkRename publishes from at to with link(2), which fails when to exists,
// then drops the temporary name.
func linkRename(from, to string) error {
	if err := os.Link(from, to); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fs.ErrExist
		}
		return err
	}
	return os.Remove(from)
}
