package rexcache

import (
	"runtime"
	"time"

	"github.com/patterncache/rexcache/internal/engine"
	"github.com/patterncache/rexcache/metrics"
)

// Pattern is a compiled regular expression obtained from a Cache. It holds
// one reference on the underlying cached Entry for as long as the Pattern
// itself is reachable: a finalizer releases that reference when the Pattern
// is garbage collected, the idiomatic Go way to tie an off-heap resource's
// lifetime to a Go value's reachability (the same approach rure-go itself
// takes with *rure.Regex, which internal/engine wraps). Pattern carries no
// exported Close, so a caller that wants deterministic release should keep
// the Pattern alive no longer than it needs to and let the finalizer do
// the rest.
//
// A Pattern is safe for concurrent use by multiple goroutines: every
// matching method acquires its own short-lived Matcher internally.
type Pattern struct {
	c *Cache
	e *entry
}

func newPattern(c *Cache, e *entry) *Pattern {
	p := &Pattern{c: c, e: e}
	runtime.SetFinalizer(p, (*Pattern).finalize)
	return p
}

func (p *Pattern) finalize() {
	p.c.releaseEntry(p.e)
}

// Matcher creates a per-operation Matcher bound to this Pattern's entry.
// The caller must Close it.
func (p *Pattern) Matcher() (*Matcher, error) {
	return newMatcher(p.c, p.e)
}

// withMatcher acquires a Matcher for the duration of fn and closes it
// afterward, the pattern every convenience method below follows so that a
// one-off Matches/Find/Match call doesn't leak a matcher slot.
func (p *Pattern) withMatcher(fn func(m *Matcher) error) error {
	m, err := newMatcher(p.c, p.e)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

// Matches reports whether input matches the pattern in its entirety.
func (p *Pattern) Matches(input []byte) (bool, error) {
	var ok bool
	err := p.withMatcher(func(m *Matcher) error {
		var ferr error
		ok, ferr = m.FullMatch(input)
		return ferr
	})
	return ok, err
}

// Find reports whether input contains a match anywhere.
func (p *Pattern) Find(input []byte) (bool, error) {
	var ok bool
	err := p.withMatcher(func(m *Matcher) error {
		var ferr error
		ok, ferr = m.PartialMatch(input)
		return ferr
	})
	return ok, err
}

// MatchResult is the outcome of Pattern.Match: whether the pattern matched,
// and if so, the capture groups of the first match (group 0 is always the
// whole match, matching rure/RE2 capture-group numbering).
type MatchResult struct {
	Matched bool
	Groups  []engine.Capture
}

// Match returns the capture groups of the first match.
func (p *Pattern) Match(input []byte) (MatchResult, error) {
	var res MatchResult
	err := p.withMatcher(func(m *Matcher) error {
		groups, ok, ferr := m.ExtractGroups(input)
		if ferr != nil {
			return ferr
		}
		res = MatchResult{Matched: ok, Groups: groups}
		return nil
	})
	return res, err
}

// FindAll returns the capture groups of every non-overlapping match.
func (p *Pattern) FindAll(input []byte) ([][]engine.Capture, error) {
	var all [][]engine.Capture
	err := p.withMatcher(func(m *Matcher) error {
		var ferr error
		all, ferr = m.FindAll(input)
		return ferr
	})
	return all, err
}

// ReplaceFirst replaces the first match of the pattern in input with
// replacement. If there is no match, input is returned unchanged (a fresh
// copy).
func (p *Pattern) ReplaceFirst(input, replacement []byte) ([]byte, error) {
	start := time.Now()
	var out []byte
	err := p.withMatcher(func(m *Matcher) error {
		groups, ok, ferr := m.ExtractGroups(input)
		if ferr != nil {
			return ferr
		}
		if !ok {
			out = append(out[:0:0], input...)
			return nil
		}
		match := groups[0]
		out = spliceReplace(input, match.Start, match.End, replacement)
		return nil
	})
	p.c.recordReplaceOp(start)
	return out, err
}

// ReplaceAll replaces every non-overlapping match of the pattern in input
// with replacement.
func (p *Pattern) ReplaceAll(input, replacement []byte) ([]byte, error) {
	start := time.Now()
	var out []byte
	err := p.withMatcher(func(m *Matcher) error {
		all, ferr := m.FindAll(input)
		if ferr != nil {
			return ferr
		}
		out = spliceReplaceAll(input, all, replacement)
		return nil
	})
	p.c.recordReplaceOp(start)
	return out, err
}

// spliceReplace rebuilds input with the byte range [start,end) replaced by
// replacement. Used by ReplaceFirst/ReplaceAll on top of the engine's
// capture primitives; the engine itself exposes no replace operation.
func spliceReplace(input []byte, start, end int, replacement []byte) []byte {
	out := make([]byte, 0, len(input)-(end-start)+len(replacement))
	out = append(out, input[:start]...)
	out = append(out, replacement...)
	out = append(out, input[end:]...)
	return out
}

// spliceReplaceAll rebuilds input with every match's group-0 span (the
// whole-match bounds FindAll reports for each element) replaced by
// replacement. matches must be in ascending, non-overlapping order, which
// is what the engine's FindAll already guarantees.
func spliceReplaceAll(input []byte, matches [][]engine.Capture, replacement []byte) []byte {
	if len(matches) == 0 {
		return append([]byte(nil), input...)
	}
	out := make([]byte, 0, len(input))
	last := 0
	for _, groups := range matches {
		whole := groups[0]
		out = append(out, input[last:whole.Start]...)
		out = append(out, replacement...)
		last = whole.End
	}
	out = append(out, input[last:]...)
	return out
}

// MatchAll is the bulk array variant of Matches over inputs: one bulk-call
// counter increment plus an items-counter increment per element, and no
// additional cache interaction beyond the one matcher the batch shares.
func (p *Pattern) MatchAll(inputs [][]byte) ([]bool, error) {
	out := make([]bool, len(inputs))
	err := p.withMatcher(func(m *Matcher) error {
		for i, in := range inputs {
			ok, ferr := m.FullMatch(in)
			if ferr != nil {
				return ferr
			}
			out[i] = ok
		}
		return nil
	})
	p.c.recordBulk(metrics.CounterMatchBulkOps, metrics.CounterMatchBulkItems, len(inputs))
	return out, err
}

// MatchAllWithGroups is the bulk array variant of Match over inputs.
func (p *Pattern) MatchAllWithGroups(inputs [][]byte) ([]MatchResult, error) {
	out := make([]MatchResult, len(inputs))
	err := p.withMatcher(func(m *Matcher) error {
		for i, in := range inputs {
			groups, ok, ferr := m.ExtractGroups(in)
			if ferr != nil {
				return ferr
			}
			out[i] = MatchResult{Matched: ok, Groups: groups}
		}
		return nil
	})
	p.c.recordBulk(metrics.CounterCaptureBulkOps, metrics.CounterCaptureBulkItems, len(inputs))
	return out, err
}

// ReplaceAllInputs is the bulk array variant of ReplaceAll over inputs.
func (p *Pattern) ReplaceAllInputs(inputs [][]byte, replacement []byte) ([][]byte, error) {
	out := make([][]byte, len(inputs))
	err := p.withMatcher(func(m *Matcher) error {
		for i, in := range inputs {
			all, ferr := m.FindAll(in)
			if ferr != nil {
				return ferr
			}
			out[i] = spliceReplaceAll(in, all, replacement)
		}
		return nil
	})
	p.c.recordBulk(metrics.CounterReplaceBulkOps, metrics.CounterReplaceBulkItems, len(inputs))
	return out, err
}
