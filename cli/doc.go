// Command surgery inspects and strips image metadata.
//
//	surgery show photo.jpg
//	surgery check *.png
//	surgery clean --copy --output-dir shared/ holiday/*.jpg
//
// Every command accepts --config to point at a TOML file; otherwise
// ~/.config/surgery/config.toml is read when present. The process exits
// non-zero when any file fails (or, for check, still carries metadata).
package main
