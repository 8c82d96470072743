// Package wheretree implements the `where(name)` query's working-tree
// half (§4.8, §9 "where's persisted/live-tree boundary split"): given a
// dependency name and the set of manifest paths the store already knows
// about, it scans the *current* working-tree copy of each manifest for
// the exact line(s) naming that dependency. It never touches git objects
// or the store — only the filesystem at HEAD's checkout.
package wheretree

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Match is one line in a working-tree manifest naming the dependency.
type Match struct {
	Path    string
	Line    int
	Text    string
	Context []string
}

// Find scans workTreeRoot/<path> for each path in manifestPaths, looking
// for a line that mentions name, and returns one Match per hit with
// contextLines lines of surrounding context on each side (the `-C N`
// flag). Files that no longer exist in the working tree (deleted since
// last indexed) are silently skipped, not an error.
func Find(workTreeRoot string, manifestPaths []string, name string, contextLines int) ([]Match, error) {
	var out []Match

	for _, path := range manifestPaths {
		matches, err := findInFile(workTreeRoot, path, name, contextLines)
		if err != nil {
			return nil, err
		}

		out = append(out, matches...)
	}

	return out, nil
}

func findInFile(workTreeRoot, path, name string, contextLines int) ([]Match, error) {
	full := filepath.Join(workTreeRoot, path)

	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var (
		lines   []string
		hitLine []int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		text := scanner.Text()
		lines = append(lines, text)

		if strings.Contains(text, name) {
			hitLine = append(hitLine, lineNo)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	out := make([]Match, 0, len(hitLine))

	for _, ln := range hitLine {
		out = append(out, Match{
			Path:    path,
			Line:    ln,
			Text:    lines[ln-1],
			Context: surrounding(lines, ln, contextLines),
		})
	}

	return out, nil
}

// surrounding returns up to contextLines lines before and after the
// 1-indexed line ln (excluding ln itself), in file order.
func surrounding(lines []string, ln, contextLines int) []string {
	if contextLines <= 0 {
		return nil
	}

	start := ln - 1 - contextLines
	if start < 0 {
		start = 0
	}

	end := ln + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	out := make([]string, 0, end-start)

	for i := start; i < end; i++ {
		if i == ln-1 {
			continue
		}

		out = append(out, lines[i])
	}

	return out
}
