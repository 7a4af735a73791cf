package refine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type DiffTag string

const (
	DiffAdded     DiffTag = "added"
	DiffRemoved   DiffTag = "removed"
	DiffUnchanged DiffTag = "unchanged"
)

// DiffLine is one line record in a prompt diff.
type DiffLine struct {
	Tag  DiffTag `json:"tag"`
	Text string  `json:"text"`
}

// DiffLines computes a line-level diff between two prompt texts. Lines are
// the segments produced by splitting on "\n"; records preserve document
// order, with removed lines emitted immediately before the added lines
// that replace them. Identical inputs always yield an identical output.
//
// The records are lossless: joining unchanged+added texts with "\n"
// reconstructs newText, and unchanged+removed reconstructs oldText.
func DiffLines(oldText, newText string) []DiffLine {
	dmp := diffmatchpatch.New()
	// Terminate both documents so every logical line, including a trailing
	// empty one, occupies its own "\n"-delimited slot. This keeps the
	// line records bijective with strings.Split(text, "\n").
	oldRunes, newRunes, lineIndex := dmp.DiffLinesToRunes(oldText+"\n", newText+"\n")
	diffs := dmp.DiffMainRunes(oldRunes, newRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lineIndex)

	var out []DiffLine
	for _, d := range diffs {
		var tag DiffTag
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			tag = DiffAdded
		case diffmatchpatch.DiffDelete:
			tag = DiffRemoved
		default:
			tag = DiffUnchanged
		}
		for _, line := range chunkLines(d.Text) {
			out = append(out, DiffLine{Tag: tag, Text: line})
		}
	}
	return out
}

// chunkLines splits a diff chunk into logical lines. With terminated
// documents every chunk ends in "\n", so dropping the final terminator
// and splitting yields exactly the lines the chunk covers.
func chunkLines(chunk string) []string {
	chunk = strings.TrimSuffix(chunk, "\n")
	return strings.Split(chunk, "\n")
}

// ReconstructNew rebuilds the new document from a diff.
func ReconstructNew(lines []DiffLine) string {
	var kept []string
	for _, l := range lines {
		if l.Tag != DiffRemoved {
			kept = append(kept, l.Text)
		}
	}
	return strings.Join(kept, "\n")
}

// ReconstructOld rebuilds the old document from a diff.
func ReconstructOld(lines []DiffLine) string {
	var kept []string
	for _, l := range lines {
		if l.Tag != DiffAdded {
			kept = append(kept, l.Text)
		}
	}
	return strings.Join(kept, "\n")
}

// DiffStats counts changed lines for display.
type DiffStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

func Stats(lines []DiffLine) DiffStats {
	var s DiffStats
	for _, l := range lines {
		switch l.Tag {
		case DiffAdded:
			s.Added++
		case DiffRemoved:
			s.Removed++
		}
	}
	return s
}

// RenderUnified renders a diff in unified-style text with +/- markers,
// used by the Markdown export.
func RenderUnified(lines []DiffLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch l.Tag {
		case DiffAdded:
			b.WriteString("+ ")
		case DiffRemoved:
			b.WriteString("- ")
		default:
			b.WriteString("  ")
		}
		b.WriteString(l.Text)
	}
	return b.String()
}
