package indexer

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestSplitter(t *testing.T) {
	s := newSplitter(10, 2)

	t.Run("empty input yields no chunks", func(t *testing.T) {
		gt.A(t, s.split("")).Length(0)
		gt.A(t, s.split("  \n\t ")).Length(0)
	})

	t.Run("short document stays one chunk", func(t *testing.T) {
		chunks := s.split("alpha bravo charlie")
		gt.A(t, chunks).Length(1)
		gt.V(t, chunks[0]).Equal("alpha bravo charlie")
	})

	t.Run("long document overlaps at boundaries", func(t *testing.T) {
		words := make([]string, 25)
		for i := range words {
			words[i] = string(rune('a' + i))
		}
		chunks := s.split(strings.Join(words, " "))
		gt.A(t, chunks).Length(3)

		for _, c := range chunks {
			gt.True(t, len(strings.Fields(c)) <= 10)
		}

		// The last overlapTokens words of one chunk open the next.
		first := strings.Fields(chunks[0])
		second := strings.Fields(chunks[1])
		gt.V(t, second[0]).Equal(first[len(first)-2])
		gt.V(t, second[1]).Equal(first[len(first)-1])
	})

	t.Run("tokens are never split", func(t *testing.T) {
		chunks := s.split(strings.Repeat("supercalifragilistic ", 30))
		for _, c := range chunks {
			for _, w := range strings.Fields(c) {
				gt.V(t, w).Equal("supercalifragilistic")
			}
		}
	})
}
