// Package chunker splits document text into fixed-size overlapping chunks
// for embedding and retrieval.
package chunker

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoContent is returned when the input documents hold no text at all.
// Zero chunks is a caller-visible error, never a silent success.
var ErrNoContent = errors.New("no content extracted from document")

const (
	defaultChunkSize = 1000
	defaultOverlap   = 200
)

// sentenceRe splits on sentence-ending punctuation.
var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Piece is a chunk of text with its position in the source document.
type Piece struct {
	Seq  int
	Text string
}

// Splitter produces chunks of roughly chunkSize runes with overlap runes
// shared between consecutive chunks. Splitting prefers paragraph
// boundaries, then sentence boundaries, and only falls back to rune
// windows for oversized sentences, so chunks avoid mid-word cuts.
// Output is deterministic for a given input.
type Splitter struct {
	chunkSize int
	overlap   int
}

func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks each document in order, numbering pieces sequentially
// across the whole file.
func (s *Splitter) Split(docs []string) ([]Piece, error) {
	var pieces []Piece
	for _, doc := range docs {
		for _, text := range s.splitText(doc) {
			pieces = append(pieces, Piece{Seq: len(pieces), Text: text})
		}
	}
	if len(pieces) == 0 {
		return nil, ErrNoContent
	}
	return pieces, nil
}

func (s *Splitter) splitText(text string) []string {
	units := s.atomize(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	for _, unit := range units {
		if runeLen(joined(append(current, unit))) > s.chunkSize && len(current) > 0 {
			chunks = append(chunks, joined(current))
			current = s.overlapTail(current)
			// A large incoming unit can push the seeded tail past the
			// target; shed leading tail units until the merge fits.
			for len(current) > 0 && runeLen(joined(append(current, unit))) > s.chunkSize {
				current = current[1:]
			}
		}
		current = append(current, unit)
	}
	if len(current) > 0 {
		chunks = append(chunks, joined(current))
	}
	return chunks
}

// overlapTail returns the trailing units of a finished chunk that seed the
// next one, bounded by the configured overlap.
func (s *Splitter) overlapTail(units []string) []string {
	kept := 0
	i := len(units)
	for i > 0 && kept+runeLen(units[i-1]) <= s.overlap {
		kept += runeLen(units[i-1]) + 1
		i--
	}
	return append([]string(nil), units[i:]...)
}

// atomize breaks text into units no longer than chunkSize: paragraphs
// first, oversized paragraphs into sentences, oversized sentences into
// rune windows.
func (s *Splitter) atomize(text string) []string {
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= s.chunkSize {
			units = append(units, para)
			continue
		}
		for _, sentence := range splitSentences(para) {
			if runeLen(sentence) <= s.chunkSize {
				units = append(units, sentence)
				continue
			}
			units = append(units, s.runeWindows(sentence)...)
		}
	}
	return units
}

// splitSentences splits on sentence punctuation, keeping any unpunctuated
// trailing text as a final unit.
func splitSentences(text string) []string {
	locs := sentenceRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	var out []string
	last := 0
	for _, loc := range locs {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// runeWindows is the last-resort fixed window split with overlap.
func (s *Splitter) runeWindows(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func joined(units []string) string {
	return strings.Join(units, " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}
