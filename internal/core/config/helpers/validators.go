package helpers

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]{}")
}

func IsPathOverlap(a, b string) bool {
	if a == b {
		return true
	}
	if strings.HasPrefix(a, b+string(os.PathSeparator)) {
		return true
	}
	if strings.HasPrefix(b, a+string(os.PathSeparator)) {
		return true
	}
	return false
}

// ValidateGlob reports whether pattern compiles with '/' as separator, the
// form used by graph skips and watch excludes.
func ValidateGlob(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty glob pattern")
	}
	if _, err := glob.Compile(pattern, '/'); err != nil {
		return fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return nil
}
