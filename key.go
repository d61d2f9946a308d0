package rexcache

import "strconv"

// Key identifies a compiled pattern. Two Keys with identical Text but
// different CaseSensitive values are distinct cache entries — case folding
// changes the compiled program, not just how it's matched.
type Key struct {
	Text          string
	CaseSensitive bool
}

// cacheKey renders the Key as a string suitable for use with
// singleflight.Group, which only accepts string keys. The rendered bool
// comes first and never contains NUL, so the first NUL always ends it and
// everything after is Text verbatim; distinct Keys therefore never collide,
// even when Text itself contains NUL.
func (k Key) cacheKey() string {
	return strconv.FormatBool(k.CaseSensitive) + "\x00" + k.Text
}
