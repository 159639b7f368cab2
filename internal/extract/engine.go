// Package extract is the detection engine behind the development
// extraction server: codex dictionary matching plus a capitalized-span
// discovery heuristic. It stands in for the production NLP service so
// the client pipeline can be exercised end to end.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/realtime"
	"maxwell-extraction/internal/settings"
	"maxwell-extraction/pkg/codex"

	"github.com/google/uuid"
)

const contextRadius = 40 // runes of surrounding text per detection

// Words that never open a discovered span on their own.
var spanStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "i": true, "he": true, "she": true,
	"it": true, "they": true, "we": true, "you": true, "but": true,
	"and": true, "or": true, "if": true, "when": true, "then": true,
	"his": true, "her": true, "its": true, "their": true, "my": true,
	"this": true, "that": true, "there": true, "here": true,
}

// Suffix words that hint at a discovered span's kind.
var kindHints = map[string]codex.Kind{
	"hold": codex.KindLocation, "keep": codex.KindLocation, "city": codex.KindLocation,
	"isle": codex.KindLocation, "forest": codex.KindLocation, "mountain": codex.KindLocation,
	"vale": codex.KindLocation, "harbor": codex.KindLocation, "reach": codex.KindLocation,
	"guild": codex.KindOrganization, "order": codex.KindOrganization, "legion": codex.KindOrganization,
	"company": codex.KindOrganization, "house": codex.KindOrganization, "court": codex.KindOrganization,
	"crown": codex.KindItem, "blade": codex.KindItem, "sword": codex.KindItem,
	"ring": codex.KindItem, "amulet": codex.KindItem, "tome": codex.KindItem,
}

// Engine detects entity mentions in manuscript text.
type Engine struct {
	idx *codex.Index
	log logger.ILogger
}

func NewEngine(idx *codex.Index, log logger.ILogger) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{idx: idx, log: log}
}

// Detect returns codex mentions (alreadyInCodex) and discovered
// candidates (isNew) for one delta, filtered by the session's settings.
func (e *Engine) Detect(text string, s settings.ExtractionSettings) []realtime.DetectedEntity {
	seen := make(map[string]bool)
	var out []realtime.DetectedEntity

	// Known codex mentions.
	for _, m := range e.idx.FindAll(text) {
		key := codex.Normalize(m.Entry.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if !s.WantsKind(m.Entry.Kind) {
			continue
		}
		out = append(out, realtime.DetectedEntity{
			Name:           m.Entry.Name,
			Type:           m.Entry.Kind,
			Context:        contextWindow(text, m.Start, m.End),
			Confidence:     settings.ConfidenceHigh,
			IsNew:          false,
			AlreadyInCodex: true,
		})
	}

	// Discovered candidates.
	for _, span := range capitalizedSpans(text) {
		key := codex.Normalize(span.text)
		if key == "" || seen[key] || e.idx.Contains(span.text) {
			continue
		}
		seen[key] = true

		kind := guessKind(span.text)
		conf := settings.ConfidenceLow
		if strings.Contains(span.text, " ") {
			conf = settings.ConfidenceMedium
		}
		if !s.WantsKind(kind) || !s.MeetsThreshold(conf) {
			continue
		}

		out = append(out, realtime.DetectedEntity{
			Name:           span.text,
			Type:           kind,
			Context:        contextWindow(text, span.start, span.end),
			Confidence:     conf,
			SuggestionID:   uuid.NewString(),
			IsNew:          true,
			AlreadyInCodex: false,
		})
	}

	return out
}

type span struct {
	text       string
	start, end int
}

// capitalizedSpans groups consecutive capitalized words into candidate
// entity names, skipping sentence-initial function words.
func capitalizedSpans(text string) []span {
	type word struct {
		text          string
		start, end    int
		capitalized   bool
		sentenceStart bool
	}

	var words []word
	i := 0
	sentenceStart := true
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsLetter(r) {
			if r == '.' || r == '!' || r == '?' || r == '\n' {
				sentenceStart = true
			}
			i += size
			continue
		}

		start := i
		for i < len(text) {
			r2, size2 := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsLetter(r2) && r2 != '\'' {
				break
			}
			i += size2
		}
		w := text[start:i]
		first, _ := utf8.DecodeRuneInString(w)
		words = append(words, word{
			text:          w,
			start:         start,
			end:           i,
			capitalized:   unicode.IsUpper(first),
			sentenceStart: sentenceStart,
		})
		sentenceStart = false
	}

	var spans []span
	for j := 0; j < len(words); j++ {
		if !words[j].capitalized {
			continue
		}
		// A sentence-initial function word capitalized by grammar alone
		// does not open a span.
		if words[j].sentenceStart && spanStopWords[strings.ToLower(words[j].text)] {
			continue
		}

		k := j
		for k+1 < len(words) && words[k+1].capitalized && !words[k+1].sentenceStart {
			k++
		}
		spans = append(spans, span{
			text:  text[words[j].start:words[k].end],
			start: words[j].start,
			end:   words[k].end,
		})
		j = k
	}
	return spans
}

func guessKind(name string) codex.Kind {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return codex.KindOther
	}
	for _, f := range fields {
		if k, ok := kindHints[f]; ok {
			return k
		}
	}
	return codex.KindCharacter
}

func contextWindow(text string, start, end int) string {
	runes := []rune(text)
	// start/end are byte offsets; recover rune offsets.
	rStart := utf8.RuneCountInString(text[:start])
	rEnd := utf8.RuneCountInString(text[:end])

	lo := rStart - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := rEnd + contextRadius
	if hi > len(runes) {
		hi = len(runes)
	}
	return strings.TrimSpace(string(runes[lo:hi]))
}
