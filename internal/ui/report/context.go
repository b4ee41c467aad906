package report

import (
	"bytes"
	"fmt"
	"strings"
)

const contextRadius = 1

// DeclarationContext returns the 1-indexed line of content with the lines
// around it, each prefixed by its number. Unknown lines yield nothing.
func DeclarationContext(content []byte, line int) []string {
	if line <= 0 || len(content) == 0 {
		return nil
	}
	lines := splitLines(content)
	if line > len(lines) {
		return nil
	}
	return buildContext(lines, line-1, contextRadius)
}

func buildContext(lines []string, hit, radius int) []string {
	start := max(hit-radius, 0)
	end := min(hit+radius+1, len(lines))
	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, fmt.Sprintf("%6d: %s", i+1, lines[i]))
	}
	return out
}

// splitLines splits on newlines, dropping the empty line after a final one.
func splitLines(content []byte) []string {
	raw := bytes.Split(content, []byte("\n"))
	lines := make([]string, len(raw))
	for i, b := range raw {
		lines[i] = strings.TrimSuffix(string(b), "\r")
	}
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
