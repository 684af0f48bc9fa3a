// Package moderation censors forbidden words in chat lines before the
// server fans them out. Matching is resistant to casing, punctuation noise
// and common leet-speak substitutions.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	log      *slog.Logger
	matcher  *goahocorasick.Machine
	replacer rune
	enabled  bool
}

// mapping links a normalized rune stream back to positions in the original.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized word
// list. An empty list yields a disabled moderator whose Censor is identity.
func NewModerator(words []string, replacer rune, log *slog.Logger) (Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		normalized := normalizeRunes([]rune(w))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}
	if len(patterns) == 0 {
		return Moderator{log: log, replacer: replacer}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{log: log, matcher: m, replacer: replacer, enabled: true}, nil
}

// Enabled reports whether a non-empty word list was configured.
func (m *Moderator) Enabled() bool {
	return m.enabled
}

// Censor masks every forbidden span of the line with the replacement rune,
// preserving spacing, and returns the matched words for diagnostics.
func (m *Moderator) Censor(line string) (string, []string) {
	if !m.enabled {
		return line, nil
	}

	mp := m.normalize(line)
	if len(mp.normalized) == 0 {
		return line, nil
	}

	spans := m.matcher.MultiPatternSearch(mp.normalized, false)
	if len(spans) == 0 {
		return line, nil
	}

	origRunes := []rune(line)
	var matched []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mp.origIdx) {
			continue
		}
		matched = append(matched, string(span.Word))

		// Mask from the first to the last original rune of the span,
		// noise characters in between included.
		for i := mp.origIdx[start]; i <= mp.origIdx[end-1]; i++ {
			origRunes[i] = m.replacer
		}
	}
	return string(origRunes), matched
}

// normalize strips noise and maps leet speak, remembering where each kept
// rune sits in the original line.
func (m *Moderator) normalize(line string) mapping {
	origRunes := []rune(line)
	mp := mapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		plain := unleet(r)
		if isNoise(plain) {
			continue
		}
		mp.normalized = append(mp.normalized, unicode.ToLower(plain))
		mp.origIdx = append(mp.origIdx, i)
	}
	return mp
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		plain := unleet(r)
		if isNoise(plain) {
			continue
		}
		out = append(out, unicode.ToLower(plain))
	}
	return out
}

// unleet maps common leet-speak characters back to their plain letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters skipped during matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
