//go:build !linux

package scrub

import "os"

func renameNoReplace(from, to string) error {
	return linkRename(from, to)
}

// syncDir is best effort; not every platform can fsync a directory.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
