// Package codex provides the known-entity index for a manuscript's world
// wiki. A single Aho-Corasick automaton serves as both dictionary lookup
// (is this name already in the codex?) and text scanner (which codex
// entities does this passage mention?).
package codex

import (
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Entry is one codex entity with its surface forms.
type Entry struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Aliases []string `json:"aliases,omitempty"`
}

// Match is one codex mention found in scanned text.
type Match struct {
	Entry Entry
	Start int // byte offset into the scanned text
	End   int
}

// Index is an immutable compiled view over a set of entries.
// Rebuild with NewIndex after codex mutations; compilation is O(total
// pattern length) and cheap at manuscript scale.
type Index struct {
	ac        ahocorasick.AhoCorasick
	entries   []Entry
	patterns  []string
	byPattern []int          // pattern index -> entry index
	byName    map[string]int // normalized surface form -> entry index
}

// NewIndex compiles entries into a scanning automaton. Entries with no
// usable surface form are skipped.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		entries: entries,
		byName:  make(map[string]int),
	}

	for i, e := range entries {
		surfaces := append([]string{e.Name}, e.Aliases...)
		for _, surface := range surfaces {
			key := Normalize(surface)
			if key == "" {
				continue
			}
			if _, exists := idx.byName[key]; exists {
				continue
			}
			idx.byName[key] = i
			idx.patterns = append(idx.patterns, key)
			idx.byPattern = append(idx.byPattern, i)
		}
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	idx.ac = builder.Build(idx.patterns)

	return idx
}

// Contains reports whether a surface form resolves to a codex entity.
func (idx *Index) Contains(name string) bool {
	_, ok := idx.byName[Normalize(name)]
	return ok
}

// Lookup resolves a surface form to its codex entry.
func (idx *Index) Lookup(name string) (Entry, bool) {
	i, ok := idx.byName[Normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// FindAll scans text for codex mentions in a single pass. The scan runs
// over the same normalized form the patterns were built from, so names
// with punctuation ("St. Mary") still match; offsets are mapped back to
// the original text.
func (idx *Index) FindAll(text string) []Match {
	if len(idx.patterns) == 0 {
		return nil
	}

	norm := normalizeIndexed(text)
	found := idx.ac.FindAll(norm.text)

	result := make([]Match, 0, len(found))
	for _, m := range found {
		result = append(result, Match{
			Entry: idx.entries[idx.byPattern[m.Pattern()]],
			Start: norm.starts[m.Start()],
			End:   norm.ends[m.End()-1],
		})
	}
	return result
}

// normalized is scan text built with the same rules as Normalize, plus
// per-byte offsets back into the source. Patterns never begin or end
// with a space, so only letter bytes ever bound a match.
type normalized struct {
	text   string
	starts []int // normalized byte -> source byte offset of its rune
	ends   []int // normalized byte -> source byte offset past its rune
}

func normalizeIndexed(s string) normalized {
	var out strings.Builder
	out.Grow(len(s))
	starts := make([]int, 0, len(s))
	ends := make([]int, 0, len(s))

	write := func(r rune, srcStart, srcEnd int) {
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		out.Write(buf[:n])
		for i := 0; i < n; i++ {
			starts = append(starts, srcStart)
			ends = append(ends, srcEnd)
		}
	}

	pendingGap := false
	for i, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' {
			c = '\''
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' {
			if pendingGap && out.Len() > 0 {
				write(' ', i, i)
			}
			pendingGap = false
			write(c, i, i+utf8.RuneLen(ch))
		} else {
			pendingGap = true
		}
	}

	return normalized{text: out.String(), starts: starts, ends: ends}
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Normalize cleans and lowercases a surface form for matching: curly
// apostrophes become straight, punctuation becomes space, runs of
// whitespace collapse.
func Normalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '’' {
			out.WriteRune('\'')
			continue
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' {
			out.WriteRune(c)
		} else {
			out.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(out.String()), " ")
}
