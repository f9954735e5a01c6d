package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", 500))
}

func TestSplit_ShortTextUnchanged(t *testing.T) {
	text := "  Paris is the capital of France.  "
	assert.Equal(t, []string{text}, Split(text, 500))
}

func TestSplit_ExactlyTargetSize(t *testing.T) {
	text := strings.Repeat("a", 500)
	chunks := Split(text, 500)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		chunks := Split(strings.Repeat("x", 1000), 500)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 500)
		assert.Len(t, chunks[1], 500)
	})

	t.Run("with remainder", func(t *testing.T) {
		chunks := Split(strings.Repeat("x", 1200), 500)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 500)
		assert.Len(t, chunks[1], 500)
		assert.Len(t, chunks[2], 200)
	})
}

func TestSplit_PrefersBoundaryPastThreshold(t *testing.T) {
	text := strings.Repeat("a", 400) + ". " + strings.Repeat("b", 600)
	chunks := Split(text, 500)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", 400)+".", chunks[0])
	assert.Equal(t, strings.Repeat("b", 500), chunks[1])
	assert.Equal(t, strings.Repeat("b", 100), chunks[2])
}

func TestSplit_IgnoresBoundaryBelowThreshold(t *testing.T) {
	t.Run("early marker", func(t *testing.T) {
		text := strings.Repeat("a", 100) + ". " + strings.Repeat("b", 600)
		chunks := Split(text, 500)
		require.NotEmpty(t, chunks)
		assert.Equal(t, text[:500], chunks[0])
	})

	t.Run("short sentences then a long run", func(t *testing.T) {
		text := "A. B. " + strings.Repeat("x", 600)
		chunks := Split(text, 500)
		require.Len(t, chunks, 2)
		assert.Equal(t, text[:500], chunks[0])
		assert.Equal(t, strings.Repeat("x", 106), chunks[1])
	})
}

func TestSplit_SingleSentenceLongerThanTarget(t *testing.T) {
	text := strings.Repeat("w", 700) + ". "
	chunks := Split(text, 500)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("w", 500), chunks[0])
	assert.Equal(t, strings.Repeat("w", 200)+".", chunks[1])
}

func TestSplit_MarkerPriority(t *testing.T) {
	t.Run("sentence end beats later paragraph break", func(t *testing.T) {
		text := strings.Repeat("a", 400) + ". " + strings.Repeat("b", 48) + "\n\n" + strings.Repeat("c", 600)
		chunks := Split(text, 500)
		require.NotEmpty(t, chunks)
		assert.Equal(t, strings.Repeat("a", 400)+".", chunks[0])
	})

	t.Run("falls through to paragraph break", func(t *testing.T) {
		text := strings.Repeat("a", 100) + ". " + strings.Repeat("b", 318) + "\n\n" + strings.Repeat("c", 600)
		chunks := Split(text, 500)
		require.NotEmpty(t, chunks)
		assert.Equal(t, strings.Repeat("a", 100)+". "+strings.Repeat("b", 318), chunks[0])
	})

	t.Run("question and exclamation marks", func(t *testing.T) {
		text := strings.Repeat("q", 380) + "? " + strings.Repeat("r", 200)
		chunks := Split(text, 500)
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("q", 380)+"?", chunks[0])

		text = strings.Repeat("e", 380) + "! " + strings.Repeat("r", 200)
		chunks = Split(text, 500)
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("e", 380)+"!", chunks[0])
	})
}

func TestSplit_CoversTextInOrder(t *testing.T) {
	var sentences []string
	for i := 0; i < 120; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence number %d talks about topic %d.", i, i%7))
	}
	text := strings.Join(sentences, " ")

	chunks := Split(text, 500)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.Equal(t, strings.TrimSpace(c), c)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 500)
	}
	assert.Equal(t, text, strings.Join(chunks, " "))
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps. ", 80)
	assert.Equal(t, Split(text, 300), Split(text, 300))
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	chunks := Split(strings.Repeat("é", 1000), 500)
	require.Len(t, chunks, 2)
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[1]))
}

func TestSplit_DefaultTargetSize(t *testing.T) {
	chunks := Split(strings.Repeat("z", DefaultTargetSize+1), 0)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultTargetSize)
}

func TestSplit_DropsWhitespaceOnlyPieces(t *testing.T) {
	text := strings.Repeat("a", 450) + ". " + strings.Repeat(" ", 600)
	chunks := Split(text, 500)
	assert.Equal(t, []string{strings.Repeat("a", 450) + "."}, chunks)
}
