package config

import (
	"strings"
	"testing"
)

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = 2
	cfg.Graph.Skip = []string{"["}
	cfg.Watch.Exclude = []string{""}

	errs := Validate(cfg)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateNpmOutDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Npm.Entries = []NpmEntry{{Key: "main", Path: "src/index.ts"}}
	cfg.Npm.OutDir = "../outside"

	errs := Validate(cfg)
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "npm.out_dir") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected npm.out_dir error, got %v", errs)
	}
}

func TestNormalizeExportKey(t *testing.T) {
	cases := map[string]string{
		"main":     "main",
		".":        "main",
		"utils":    "./utils",
		"./utils/": "./utils",
		"/deep/x":  "./deep/x",
	}
	for in, want := range cases {
		if got := normalizeExportKey(in); got != want {
			t.Errorf("normalizeExportKey(%q) = %q, want %q", in, got, want)
		}
	}
}
