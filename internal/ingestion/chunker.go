package ingestion

import (
	"regexp"
	"strings"
)

// Default chunking parameters, in whitespace tokens.
const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 40
)

// sentenceEnd matches a sentence-ending punctuation mark followed by
// whitespace. Splitting keeps the punctuation with the sentence.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// blankLine matches paragraph separators.
var blankLine = regexp.MustCompile(`\n{2,}`)

// sentences splits text into sentence-sized units. Paragraphs are split
// first so sentences never span a blank line; heading lines stay whole.
func sentences(text string) []string {
	var out []string
	for _, para := range blankLine.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if strings.HasPrefix(para, "#") {
			out = append(out, para)
			continue
		}
		split := sentenceEnd.ReplaceAllString(para, "$1\x00")
		for _, s := range strings.Split(split, "\x00") {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// ChunkText packs sentences into chunks of at most chunkSize whitespace
// tokens, carrying the last overlap tokens of each chunk into the next so
// context survives the boundary. A single sentence longer than chunkSize
// still becomes its own chunk.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}

	var (
		chunks    []string
		cur       []string
		curTokens int
	)
	for _, s := range sentences(text) {
		n := len(strings.Fields(s))
		if curTokens+n > chunkSize && len(cur) > 0 {
			joined := strings.Join(cur, " ")
			chunks = append(chunks, joined)

			cur = cur[:0]
			curTokens = 0
			if overlap > 0 {
				tokens := strings.Fields(joined)
				if len(tokens) > overlap {
					tokens = tokens[len(tokens)-overlap:]
				}
				if len(tokens) > 0 {
					tail := strings.Join(tokens, " ")
					cur = append(cur, tail)
					curTokens = len(tokens)
				}
			}
		}
		cur = append(cur, s)
		curTokens += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}
