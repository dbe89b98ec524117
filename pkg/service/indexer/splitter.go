package indexer

import "strings"

const (
	// DefaultChunkTokens bounds the size of one chunk. The budget is counted
	// in whitespace tokens, which tracks embedding-model tokens closely
	// enough for sizing.
	DefaultChunkTokens = 300

	// DefaultOverlapTokens is repeated from the tail of one chunk at the
	// head of the next so that a sentence cut at a boundary still appears
	// whole in at least one chunk.
	DefaultOverlapTokens = 40
)

type splitter struct {
	chunkTokens   int
	overlapTokens int
}

func newSplitter(chunkTokens, overlapTokens int) *splitter {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 || overlapTokens >= chunkTokens {
		overlapTokens = DefaultOverlapTokens
	}
	if overlapTokens >= chunkTokens {
		overlapTokens = chunkTokens / 4
	}
	return &splitter{chunkTokens: chunkTokens, overlapTokens: overlapTokens}
}

// split cuts text into chunks of at most chunkTokens whitespace tokens,
// never breaking inside a token. A non-empty document always yields at
// least one chunk; a whitespace-only document yields none.
func (s *splitter) split(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	step := s.chunkTokens - s.overlapTokens
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + s.chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
