package refine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffLines_Identical(t *testing.T) {
	text := "line one\nline two\nline three"

	lines := DiffLines(text, text)
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, DiffUnchanged, l.Tag)
	}
	assert.Equal(t, text, ReconstructNew(lines))
	assert.Equal(t, text, ReconstructOld(lines))
}

func TestDiffLines_AddAndRemove(t *testing.T) {
	oldText := "keep\ndrop me\nkeep too"
	newText := "keep\nnew line\nkeep too"

	lines := DiffLines(oldText, newText)

	assert.Equal(t, []DiffLine{
		{Tag: DiffUnchanged, Text: "keep"},
		{Tag: DiffRemoved, Text: "drop me"},
		{Tag: DiffAdded, Text: "new line"},
		{Tag: DiffUnchanged, Text: "keep too"},
	}, lines, "removed lines come immediately before the added lines replacing them")
}

func TestDiffLines_RoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		oldText string
		newText string
	}{
		{"replace middle", "a\nb\nc", "a\nx\nc"},
		{"append", "a\nb", "a\nb\nc"},
		{"prepend", "b\nc", "a\nb\nc"},
		{"delete all", "a\nb", ""},
		{"from empty", "", "a\nb"},
		{"trailing newline gained", "a\nb", "a\nb\n"},
		{"trailing newline lost", "a\nb\n", "a\nb"},
		{"both empty", "", ""},
		{"disjoint", "x\ny", "p\nq\nr"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines := DiffLines(tc.oldText, tc.newText)
			assert.Equal(t, tc.newText, ReconstructNew(lines))
			assert.Equal(t, tc.oldText, ReconstructOld(lines))
		})
	}
}

func TestDiffLines_Deterministic(t *testing.T) {
	oldText := "one\ntwo\nthree\nfour"
	newText := "one\n2\nthree\n4\nfive"

	first := DiffLines(oldText, newText)
	second := DiffLines(oldText, newText)
	assert.Equal(t, first, second)
}

func TestStats(t *testing.T) {
	lines := DiffLines("a\nb\nc", "a\nx\ny\nc")
	s := Stats(lines)
	assert.Equal(t, 2, s.Added)
	assert.Equal(t, 1, s.Removed)
}

func TestRenderUnified(t *testing.T) {
	lines := []DiffLine{
		{Tag: DiffUnchanged, Text: "ctx"},
		{Tag: DiffRemoved, Text: "old"},
		{Tag: DiffAdded, Text: "new"},
	}

	assert.Equal(t, "  ctx\n- old\n+ new", RenderUnified(lines))
}
