package tool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// fileChange describes how a file's text changed.
type fileChange struct {
	Patch   string
	Added   int
	Removed int
}

// Stat renders the line counts, e.g. "+3 -1".
func (c fileChange) Stat() string {
	return fmt.Sprintf("+%d -%d", c.Added, c.Removed)
}

// diffText compares before and after line by line. The patch headers name
// path relative to baseDir when it lies beneath it.
func diffText(path, before, after, baseDir string) fileChange {
	if before == after {
		return fileChange{}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var change fileChange
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			change.Added += lineCount(d.Text)
		case diffmatchpatch.DiffDelete:
			change.Removed += lineCount(d.Text)
		}
	}

	patch := dmp.PatchToText(dmp.PatchMake(before, diffs))
	if patch == "" {
		return change
	}
	name := displayPath(path, baseDir)
	change.Patch = fmt.Sprintf("--- %s\n+++ %s\n%s", name, name, patch)
	return change
}

func displayPath(path, baseDir string) string {
	if baseDir == "" {
		return path
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// lineCount counts lines, including an unterminated last one.
func lineCount(text string) int {
	n := strings.Count(text, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
