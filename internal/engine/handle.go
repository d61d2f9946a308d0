// Package engine wraps the native regex engine exposed by rure-go (a cgo
// binding over Rust's regex crate, which implements the same RE2 automaton
// family the rest of this module is written against) behind the narrow
// compile/match/capture/size/destroy surface the cache needs. Nothing
// outside this package touches *rure.Regex directly.
package engine

import (
	"fmt"
	"sync/atomic"

	rure "github.com/BurntSushi/rure-go"
)

// Handle exclusively owns one native compiled program (materialized as two
// rure programs: the pattern as written, plus an anchored \A(?:...)\z form
// backing FullMatch, since rure has no per-call anchoring mode). A Handle
// must be destroyed exactly once via Destroy; after that, every match and
// capture method returns its zero value without touching the native
// programs, IsValid reports false, and ProgramSizeBytes still reports the
// compile-time size. Handle itself
// does no synchronization — callers (Entry, compileWithoutCache) are
// responsible for ensuring Destroy happens only after every concurrent
// match has finished, per the refcounting discipline in the parent package.
type Handle struct {
	partial *rure.Regex // pattern as written, for PartialMatch/captures
	full    *rure.Regex // \A(?:pattern)\z, for FullMatch
	size    int
	valid   atomic.Bool
}

// programSizeEstimate approximates the native memory a compiled program
// holds. rure's C API exposes no program-size query, so the handle charges
// memory accounting with an estimate proportional to the pattern source:
// long alternations compile to proportionally larger automata, which is the
// property the accounting needs to hold.
func programSizeEstimate(text string) int {
	return 256 + 64*len(text)
}

// Compile builds the native programs for text. caseSensitive=false is
// implemented as an inline (?i) flag prefix, matching how the underlying
// Rust regex crate spells case folding.
func Compile(text string, caseSensitive bool) (*Handle, error) {
	prefix := ""
	if !caseSensitive {
		prefix = "(?i)"
	}

	partial, err := rure.Compile(prefix + text)
	if err != nil {
		return nil, fmt.Errorf("engine: compile %q: %w", text, err)
	}
	full, err := rure.Compile(prefix + `\A(?:` + text + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("engine: compile %q (anchored): %w", text, err)
	}

	h := &Handle{
		partial: partial,
		full:    full,
		size:    2 * programSizeEstimate(text),
	}
	h.valid.Store(true)
	return h, nil
}

// FullMatch reports whether the entire input matches the program.
func (h *Handle) FullMatch(input []byte) bool {
	if !h.valid.Load() {
		return false
	}
	return h.full.IsMatchBytes(input)
}

// PartialMatch reports whether input contains any match anywhere.
func (h *Handle) PartialMatch(input []byte) bool {
	if !h.valid.Load() {
		return false
	}
	return h.partial.IsMatchBytes(input)
}

// Capture is one matched group: Start/End are byte offsets into the input
// that produced it, and Text is the slice they bound (nil if the group did
// not participate in the match).
type Capture struct {
	Start, End int
	Text       []byte
}

// ExtractGroups returns the capture groups of the first match, or
// (nil, false) if there is no match. Group 0 is the whole match.
func (h *Handle) ExtractGroups(input []byte) ([]Capture, bool) {
	if !h.valid.Load() {
		return nil, false
	}
	caps := h.partial.NewCaptures()
	if !h.partial.CapturesBytes(caps, input) {
		return nil, false
	}
	return capturesToGroups(caps, input, 0), true
}

// FindAll returns the capture groups of every non-overlapping match, in
// order of position. Matching restarts just past each whole-match span; an
// empty match advances by one byte so the scan always terminates.
func (h *Handle) FindAll(input []byte) [][]Capture {
	if !h.valid.Load() {
		return nil
	}
	var out [][]Capture
	caps := h.partial.NewCaptures()
	pos := 0
	for pos <= len(input) {
		if !h.partial.CapturesBytes(caps, input[pos:]) {
			break
		}
		groups := capturesToGroups(caps, input, pos)
		out = append(out, groups)

		whole := groups[0]
		if whole.End > pos {
			pos = whole.End
		} else {
			pos++
		}
	}
	return out
}

// capturesToGroups converts a rure Captures into this package's Capture
// slice. offset shifts group spans back into whole-input coordinates when
// the match ran against a subslice starting there.
func capturesToGroups(caps *rure.Captures, input []byte, offset int) []Capture {
	n := caps.Len()
	groups := make([]Capture, n)
	for i := 0; i < n; i++ {
		start, end, ok := caps.Group(i)
		if !ok {
			continue
		}
		start += offset
		end += offset
		groups[i] = Capture{Start: start, End: end, Text: input[start:end]}
	}
	return groups
}

// ProgramSizeBytes is the size of the compiled program, fixed at compile
// time. It is what memory accounting charges against currentNativeBytes.
func (h *Handle) ProgramSizeBytes() int { return h.size }

// IsValid reports whether Destroy has not yet been called on h.
func (h *Handle) IsValid() bool { return h.valid.Load() }

// Destroy releases the handle's ownership of the native programs.
// Idempotent: a second call is a no-op. rure-go reclaims the native memory
// itself via finalizers once the *rure.Regex values become unreachable, so
// dropping the references here is what actually frees them; the valid flag
// is what makes any later (defective) use observable instead of a
// use-after-free.
func (h *Handle) Destroy() error {
	if !h.valid.CompareAndSwap(true, false) {
		return nil
	}
	h.partial = nil
	h.full = nil
	return nil
}
