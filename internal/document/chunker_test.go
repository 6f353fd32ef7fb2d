package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunker_ShortPageSingleChunk(t *testing.T) {
	c := NewChunker(200, 40)
	chunks := c.Split("doc.pdf", []Page{{Number: 1, Text: words(50)}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc.pdf", chunks[0].Source)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "text", chunks[0].Modality)
}

func TestChunker_WindowAndOverlap(t *testing.T) {
	c := NewChunker(10, 4)
	chunks := c.Split("doc.pdf", []Page{{Number: 1, Text: words(22)}})

	// step = 6: windows [0,10) [6,16) [12,22).
	require.Len(t, chunks, 3)

	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Len(t, first, 10)
	assert.Equal(t, first[6:], second[:4])
	assert.Equal(t, "w0", first[0])

	last := strings.Fields(chunks[2].Text)
	assert.Equal(t, "w21", last[len(last)-1])
}

func TestChunker_OrdinalsAndIDsPerPage(t *testing.T) {
	c := NewChunker(10, 0)
	chunks := c.Split("doc.pdf", []Page{
		{Number: 1, Text: words(15)},
		{Number: 2, Text: words(5)},
	})

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 1, chunks[1].Ordinal)
	assert.Equal(t, 1, chunks[0].Page)
	// Ordinals restart per page.
	assert.Equal(t, 0, chunks[2].Ordinal)
	assert.Equal(t, 2, chunks[2].Page)

	seen := map[string]bool{}
	for _, ch := range chunks {
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
	}
}

func TestChunker_StableIDsAcrossRuns(t *testing.T) {
	c := NewChunker(10, 2)
	pages := []Page{{Number: 3, Text: words(30)}}

	a := c.Split("report.pdf", pages)
	b := c.Split("report.pdf", pages)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}

	other := c.Split("other.pdf", pages)
	assert.NotEqual(t, a[0].ID, other[0].ID)
}

func TestChunker_BlankPageYieldsNothing(t *testing.T) {
	c := NewChunker(10, 2)
	chunks := c.Split("doc.pdf", []Page{{Number: 1, Text: "   \n\t "}})
	assert.Empty(t, chunks)
}

func TestChunker_InvalidParamsClamped(t *testing.T) {
	// Degenerate inputs must not panic or loop forever.
	c := NewChunker(0, -1)
	chunks := c.Split("doc.pdf", []Page{{Number: 1, Text: words(500)}})
	assert.NotEmpty(t, chunks)

	c = NewChunker(10, 10)
	chunks = c.Split("doc.pdf", []Page{{Number: 1, Text: words(25)}})
	assert.NotEmpty(t, chunks)
}

func TestClassify_Table(t *testing.T) {
	table := "| name | qty |\n| apples | 3 |\n| pears | 5 |"
	c := NewChunker(200, 0)
	chunks := c.Split("report.pdf", []Page{{Number: 1, Text: table}})
	require.Len(t, chunks, 1)
	assert.Equal(t, "table", chunks[0].Modality)

	prose := "plain paragraph without separators\nand a second line of prose"
	chunks = c.Split("report.pdf", []Page{{Number: 1, Text: prose}})
	require.Len(t, chunks, 1)
	assert.Equal(t, "text", chunks[0].Modality)
}

func TestClassify_TabSeparatedTable(t *testing.T) {
	table := "name\tqty\tprice\napples\t3\t1.20\npears\t5\t2.40"
	c := NewChunker(200, 0)
	chunks := c.Split("report.pdf", []Page{{Number: 1, Text: table}})
	require.Len(t, chunks, 1)
	assert.Equal(t, "table", chunks[0].Modality)
	// Chunk text is whitespace-normalized; modality must survive that.
	assert.NotContains(t, chunks[0].Text, "\t")
}

func TestClassify_LineMajority(t *testing.T) {
	c := NewChunker(200, 0)

	// One tabular line among mostly prose stays text.
	mixed := "an introductory paragraph\nmore prose here\ntotals\t12\t3.60"
	chunks := c.Split("report.pdf", []Page{{Number: 1, Text: mixed}})
	require.Len(t, chunks, 1)
	assert.Equal(t, "text", chunks[0].Modality)

	// Blank lines do not dilute the majority.
	spaced := "| name | qty |\n\n| apples | 3 |\n\n| pears | 5 |"
	chunks = c.Split("report.pdf", []Page{{Number: 1, Text: spaced}})
	require.Len(t, chunks, 1)
	assert.Equal(t, "table", chunks[0].Modality)
}

func TestClassify_PerWindow(t *testing.T) {
	// Small windows so the table and the prose land in separate chunks.
	prose := "alpha beta gamma delta epsilon zeta eta theta"
	table := "a\tb\tc\nd\te\tf\ng\th"
	c := NewChunker(8, 0)
	chunks := c.Split("report.pdf", []Page{{Number: 1, Text: prose + "\n" + table}})
	require.Len(t, chunks, 2)
	assert.Equal(t, "text", chunks[0].Modality)
	assert.Equal(t, "table", chunks[1].Modality)
}
