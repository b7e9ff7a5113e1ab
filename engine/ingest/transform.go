package ingest

import (
	"strings"
	"unicode"

	"github.com/HansardGraph/hansard-mvp/engine/graph"
)

const (
	// DefaultChunkSize is the target number of tokens per chunk.
	DefaultChunkSize = 512
	// DefaultOverlap is the number of overlapping tokens between chunks.
	DefaultOverlap = 50
)

// splitSentences splits text into sentences using punctuation and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// End-of-sentence only when followed by space or end of text.
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				s := strings.TrimSpace(current.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkText splits one text node's content into embeddable chunks of
// ~chunkSize tokens with overlap. Token count is approximated as word count.
func chunkText(uid, subtype, chamber, content string, chunkSize, overlap int) []Chunk {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []Chunk
	idx := 0
	start := 0

	for start < len(sentences) {
		var buf strings.Builder
		tokens := 0
		end := start

		for end < len(sentences) {
			words := wordCount(sentences[end])
			if tokens+words > chunkSize && tokens > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteRune(' ')
			}
			buf.WriteString(sentences[end])
			tokens += words
			end++
		}

		chunks = append(chunks, Chunk{
			Text:    buf.String(),
			Index:   idx,
			UID:     uid,
			Subtype: subtype,
			Chamber: chamber,
		})
		idx++

		// Move start back by overlap amount.
		overlapTokens := 0
		newStart := end
		for newStart > start && overlapTokens < overlap {
			newStart--
			overlapTokens += wordCount(sentences[newStart])
		}
		if newStart == start {
			// Ensure forward progress.
			start = end
		} else {
			start = newStart
		}
	}
	return chunks
}

// subgraphChunks extracts every Text node of a subgraph as embeddable chunks.
// Chunk indexes run per text node, so the (uid, subtype, index) triple is
// stable across re-ingestion.
func subgraphChunks(sg graph.Subgraph, uid, chamber string) []Chunk {
	var chunks []Chunk
	for _, e := range sg.Entities {
		if e.Label != graph.LabelText {
			continue
		}
		subtype, _ := e.Props["TextSubtype"].(string)
		content, _ := e.Props["TextContent"].(string)
		chunks = append(chunks, chunkText(uid, subtype, chamber, content, DefaultChunkSize, DefaultOverlap)...)
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
