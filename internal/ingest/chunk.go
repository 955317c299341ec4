package ingest

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults, in bytes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// Chunk splits text into pieces of at most size bytes for embedding.
// Paragraphs are kept whole when they fit; longer ones are split between
// words. Each chunk after the first starts with up to overlap bytes of the
// previous chunk's tail, cut at a word boundary, so a fact straddling two
// chunks is retrievable from either. Non-positive size uses the defaults;
// an overlap outside [0, size/2] is clamped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size, overlap = DefaultChunkSize, DefaultChunkOverlap
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}

	// Leave room for the overlap tail in front of a split piece.
	unitSize := size
	if overlap > 0 && size-overlap-2 > 0 {
		unitSize = size - overlap - 2
	}

	var units []string
	for _, para := range strings.Split(normalizeText(text), "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			units = append(units, splitLong(para, unitSize)...)
		}
	}
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	fresh := false // cur holds content not yet emitted
	for _, u := range units {
		if fresh && cur.Len()+2+len(u) > size {
			prev := cur.String()
			chunks = append(chunks, prev)
			cur.Reset()
			fresh = false
			if tail := tailWords(prev, overlap); tail != "" && len(tail)+2+len(u) <= size {
				cur.WriteString(tail)
			}
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(u)
		fresh = true
	}
	if fresh {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// splitLong breaks a paragraph longer than size into word-aligned pieces.
// A single word longer than size is cut at rune boundaries.
func splitLong(para string, size int) []string {
	if len(para) <= size {
		return []string{para}
	}
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(para) {
		for len(w) > size {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cut := size
			for cut > 0 && !utf8.RuneStart(w[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(w)
			}
			out = append(out, w[:cut])
			w = w[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(w) > size {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// tailWords returns at most n bytes from the end of s, starting at a word.
func tailWords(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	if len(s) <= n {
		return ""
	}
	rest := s[len(s)-n:]
	idx := strings.IndexAny(rest, " \n")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(rest[idx+1:])
}
