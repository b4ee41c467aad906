package compiler

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
)

const CategoryError = "error"

var (
	positioned = regexp.MustCompile(`^(.+)\((\d+),(\d+)\): (error|warning|message) (TS\d+): (.*)$`)
	global     = regexp.MustCompile(`^(error|warning|message) (TS\d+): (.*)$`)
)

// ParseDiagnostics reads `tsc --pretty false` output. Indented lines continue
// the previous message.
func ParseDiagnostics(output []byte) []ports.Diagnostic {
	var diags []ports.Diagnostic
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := positioned.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			diags = append(diags, ports.Diagnostic{File: m[1], Line: ln, Column: col, Category: m[4], Code: m[5], Message: m[6]})
			continue
		}
		if m := global.FindStringSubmatch(line); m != nil {
			diags = append(diags, ports.Diagnostic{Category: m[1], Code: m[2], Message: m[3]})
			continue
		}
		if len(diags) > 0 && (line[0] == ' ' || line[0] == '\t') {
			last := &diags[len(diags)-1]
			last.Message += "\n" + strings.TrimSpace(line)
		}
	}
	return diags
}

// Errors filters diagnostics down to the error category.
func Errors(diags []ports.Diagnostic) []ports.Diagnostic {
	var out []ports.Diagnostic
	for _, d := range diags {
		if d.Category == CategoryError {
			out = append(out, d)
		}
	}
	return out
}

// Format renders a diagnostic as file:line:col: TSxxxx message.
func Format(d ports.Diagnostic) string {
	if d.File == "" {
		return fmt.Sprintf("%s %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s %s", d.File, d.Line, d.Column, d.Code, d.Message)
}

// DiagnosticsError turns error diagnostics into a CodeDiagnostic error, or
// returns nil when there are none.
func DiagnosticsError(diags []ports.Diagnostic) error {
	errs := Errors(diags)
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, d := range errs {
		lines = append(lines, Format(d))
	}
	return domain.New(domain.CodeDiagnostic, fmt.Sprintf("%d compiler error(s):\n%s", len(errs), strings.Join(lines, "\n")))
}
