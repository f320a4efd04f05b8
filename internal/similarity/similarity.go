// Package similarity flags near-duplicate questions within a corpus.
//
// Two questions are related when the lowercased first 30 UTF-16 code units
// of either one occur inside the lowercased text of the other. The relation
// is evaluated pairwise and is not transitive: a question's repetition count
// is the number of questions it directly relates to, itself included.
package similarity

import (
	"slices"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/edugenai/insights/internal/model"
)

// PrefixLen is the number of UTF-16 code units compared.
const PrefixLen = 30

// Prefix returns the first n UTF-16 code units of text, or all of them when
// text is shorter. A surrogate pair may be split.
func Prefix(text string, n int) []uint16 {
	u := utf16.Encode([]rune(text))
	if len(u) > n {
		u = u[:n]
	}
	return u
}

// entry is a question text prepared for repeated comparison.
type entry struct {
	text   []uint16
	prefix []uint16
}

// lowerer applies full Unicode lowercasing, so one code point may map to
// several (İ becomes i plus a combining dot) and a word-final Σ becomes ς.
// A Caser is stateful; each lowerer belongs to one goroutine.
type lowerer struct {
	c cases.Caser
}

func newLowerer() *lowerer {
	return &lowerer{c: cases.Lower(language.Und)}
}

func (l *lowerer) entry(text string) entry {
	if text == "" {
		return entry{}
	}
	return entry{
		text:   utf16.Encode([]rune(l.c.String(text))),
		prefix: l.units(Prefix(text, PrefixLen)),
	}
}

// units lowercases UTF-16 code units. A cut may leave a trailing high
// surrogate; it is kept as is.
func (l *lowerer) units(u []uint16) []uint16 {
	var tail []uint16
	if n := len(u); n > 0 && isHighSurrogate(u[n-1]) {
		u, tail = u[:n-1], u[n-1:]
	}
	out := utf16.Encode([]rune(l.c.String(string(utf16.Decode(u)))))
	return append(out, tail...)
}

func isHighSurrogate(c uint16) bool { return c >= 0xd800 && c < 0xdc00 }

func (e entry) empty() bool { return len(e.text) == 0 }

func related(a, b entry) bool {
	if a.empty() || b.empty() {
		return false
	}
	return containsUnits(b.text, a.prefix) || containsUnits(a.text, b.prefix)
}

// Relate reports whether two question texts are near-duplicates.
// Relate(a, b) == Relate(b, a) for all inputs. Empty text relates to nothing.
func Relate(a, b string) bool {
	l := newLowerer()
	return related(l.entry(a), l.entry(b))
}

// Annotate returns a copy of questions with RepetitionCount, IsRepeated and
// RepetitionLevel computed against the slice itself. Order is preserved and
// the input is not modified. Cost is quadratic in len(questions).
func Annotate(questions []model.Question) []model.Question {
	l := newLowerer()
	entries := make([]entry, len(questions))
	for i, q := range questions {
		entries[i] = l.entry(q.Text)
	}

	out := make([]model.Question, len(questions))
	for i, q := range questions {
		count := 1
		if !entries[i].empty() {
			count = 0
			for j := range entries {
				if related(entries[i], entries[j]) {
					count++
				}
			}
			// A prefix cut inside a word can lowercase differently from the
			// full text, so a question may fail to relate to itself.
			count = max(count, 1)
		}
		q.Options = slices.Clone(q.Options)
		q.RepetitionCount = count
		q.IsRepeated = count > 1
		q.RepetitionLevel = LevelOf(count)
		out[i] = q
	}
	return out
}

// LevelOf buckets a repetition count: 4 or more is frequent, 2-3 repeated.
func LevelOf(count int) model.RepetitionLevel {
	switch {
	case count >= 4:
		return model.RepetitionFrequent
	case count >= 2:
		return model.RepetitionRepeated
	}
	return model.RepetitionNone
}

func containsUnits(hay, needle []uint16) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		if slices.Equal(hay[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}
