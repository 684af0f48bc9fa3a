package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Builds the automaton from a large dictionary and measures censoring
// throughput on a chat-sized line. Run with: go test -bench=. ./moderation
func Benchmark_Censor(b *testing.B) {
	req := require.New(b)

	words := make([]string, 0, 100_000)
	for i := 0; i < 100_000; i++ {
		words = append(words, fmt.Sprintf("word_%d", i))
	}
	moderator, err := NewModerator(words, '*', slog.New(slog.DiscardHandler))
	req.NoError(err)

	line := strings.Repeat("a perfectly ordinary chat line with word_99999 in it ", 4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		censored, matches := moderator.Censor(line)
		if len(matches) == 0 || censored == line {
			b.Fatal("expected a censored match")
		}
	}
}
