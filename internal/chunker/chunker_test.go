package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := New(1000, 200)

	pieces, err := s.Split([]string{"A short paragraph that fits in one chunk."})
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Seq)
	assert.Equal(t, "A short paragraph that fits in one chunk.", pieces[0].Text)
}

func TestSplitEmptyInputIsError(t *testing.T) {
	s := New(1000, 200)

	_, err := s.Split(nil)
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = s.Split([]string{"", "   ", "\n\n"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestSplitIsDeterministic(t *testing.T) {
	s := New(100, 20)
	input := []string{strings.Repeat("One sentence here. Another one follows. ", 30)}

	first, err := s.Split(input)
	require.NoError(t, err)
	second, err := s.Split(input)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := New(100, 20)
	input := []string{strings.Repeat("Sentence number one. ", 40)}

	pieces, err := s.Split(input)
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p.Text)), 100, "chunk %d exceeds size", p.Seq)
	}
}

func TestSplitOverlapsConsecutiveChunks(t *testing.T) {
	s := New(100, 40)
	input := []string{strings.Repeat("Alpha beta gamma delta. ", 30)}

	pieces, err := s.Split(input)
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)

	// Each chunk after the first starts with text from its predecessor.
	for i := 1; i < len(pieces); i++ {
		head := strings.Fields(pieces[i].Text)[0]
		assert.Contains(t, pieces[i-1].Text, head)
	}
}

func TestSplitBoundsChunkAfterOverlapReseed(t *testing.T) {
	s := New(1000, 200)
	// Many small sentences followed by one near-target-size sentence: the
	// overlap tail seeded after a flush must shrink to make room, or the
	// merged chunk overshoots the size target by up to the overlap.
	big := strings.Repeat("y", 940) + "."
	input := []string{strings.Repeat("Tiny fact here. ", 70) + big}

	pieces, err := s.Split(input)
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p.Text)), 1000, "chunk %d exceeds size", p.Seq)
	}
	assert.Contains(t, pieces[len(pieces)-1].Text, big)
}

func TestOverlapTailStaysWithinOverlap(t *testing.T) {
	s := New(100, 9)
	units := []string{"aaaa", "bbbb", "cccc", "dddd"}

	tail := s.overlapTail(units)
	// "cccc dddd" is exactly 9 runes with the joiner counted; a third unit
	// would not fit.
	require.Equal(t, []string{"cccc", "dddd"}, tail)
	assert.LessOrEqual(t, runeLen(joined(tail)), 9)
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := New(100, 10)
	para1 := "First paragraph body that stands alone."
	para2 := "Second paragraph body that also stands alone."

	pieces, err := s.Split([]string{para1 + "\n\n" + para2})
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	// Both paragraphs fit one chunk; neither is cut mid-word.
	assert.Contains(t, pieces[0].Text, para1)
	assert.Contains(t, pieces[0].Text, para2)
}

func TestSplitHandlesOversizedSentence(t *testing.T) {
	s := New(50, 10)
	giant := strings.Repeat("x", 175) // no punctuation, forces rune windows

	pieces, err := s.Split([]string{giant})
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)

	total := ""
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p.Text)), 50)
		total += p.Text
	}
	// All original content survives splitting.
	assert.GreaterOrEqual(t, len(total), 175)
}

func TestSplitNumbersPiecesAcrossDocuments(t *testing.T) {
	s := New(1000, 200)

	pieces, err := s.Split([]string{"Page one text.", "Page two text.", "Page three text."})
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	for i, p := range pieces {
		assert.Equal(t, i, p.Seq)
	}
}
