package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	domain "nyein/internal/core/errors"
	"nyein/internal/core/ports"
	"nyein/internal/shared/observability"
)

const DefaultTimeout = 2 * time.Minute

// TSC drives the TypeScript compiler as a child process. Each Compile call
// gets its own scratch directory holding a generated tsconfig that extends
// the user's, plus the emitted files, which are read back into memory.
type TSC struct {
	Command    string
	Args       []string
	Timeout    time.Duration
	WorkingDir string
}

func NewTSC(command string, args []string, timeout time.Duration, workingDir string) *TSC {
	if strings.TrimSpace(command) == "" {
		command = "tsc"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TSC{Command: command, Args: args, Timeout: timeout, WorkingDir: workingDir}
}

var _ ports.Compiler = (*TSC)(nil)

func (t *TSC) Compile(ctx context.Context, req ports.CompileRequest) (ports.CompileResult, error) {
	start := time.Now()
	defer func() {
		label := string(req.Module)
		if req.NoEmit {
			label = "check"
		}
		observability.CompilerDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	scratch, err := os.MkdirTemp("", "nyein-tsc-*")
	if err != nil {
		return ports.CompileResult{}, domain.Wrap(err, domain.CodeInternal, "create compiler scratch dir")
	}
	defer os.RemoveAll(scratch)

	outDir := filepath.Join(scratch, "out")
	project := filepath.Join(scratch, "tsconfig.json")
	data, err := ProjectFile(req, outDir, t.WorkingDir)
	if err != nil {
		return ports.CompileResult{}, domain.Wrap(err, domain.CodeInternal, "render compiler project")
	}
	if err := os.WriteFile(project, data, 0o644); err != nil {
		return ports.CompileResult{}, domain.Wrap(err, domain.CodeInternal, "write compiler project")
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	args := append(append([]string(nil), t.Args...), "-p", project, "--pretty", "false")
	cmd := exec.CommandContext(ctx, t.Command, args...)
	cmd.Dir = t.WorkingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	diags := ParseDiagnostics(append(stdout.Bytes(), stderr.Bytes()...))
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return ports.CompileResult{}, domain.Wrap(ctx.Err(), domain.CodeInternal, "compiler timed out")
		case errors.As(runErr, &exitErr) && len(diags) > 0:
			// A failing exit with diagnostics is a normal type error report.
		default:
			err := domain.Wrap(runErr, domain.CodeInternal, "run compiler")
			return ports.CompileResult{}, domain.AddContext(err, "output", strings.TrimSpace(stderr.String()+stdout.String()))
		}
	}

	files, err := collect(outDir)
	if err != nil {
		return ports.CompileResult{}, domain.Wrap(err, domain.CodeInternal, "read compiler output")
	}
	return ports.CompileResult{Files: files, Diagnostics: diags}, nil
}

type projectFile struct {
	Extends         string         `json:"extends,omitempty"`
	CompilerOptions map[string]any `json:"compilerOptions"`
	Files           []string       `json:"files"`
	Include         []string       `json:"include"`
}

// ProjectFile renders the tsconfig for one compile request. Settings the
// request controls override the extended project.
func ProjectFile(req ports.CompileRequest, outDir, workingDir string) ([]byte, error) {
	opts := map[string]any{
		"outDir":       outDir,
		"skipLibCheck": true,
		"declaration":  req.Declaration || req.EmitDeclarationOnly,
	}
	if req.Module != "" {
		opts["module"] = string(req.Module)
		opts["moduleResolution"] = "node"
	}
	if req.EmitDeclarationOnly {
		opts["emitDeclarationOnly"] = true
	}
	if req.NoEmit {
		opts["noEmit"] = true
		delete(opts, "declaration")
	}
	if req.Strict {
		opts["strict"] = true
	}

	files := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, absolute(f, workingDir))
	}
	if len(files) > 0 {
		// Inputs live in a staging dir, outside any rootDir the user set.
		opts["rootDir"] = filepath.Dir(files[0])
	}
	pf := projectFile{CompilerOptions: opts, Files: files, Include: []string{}}
	if req.TSConfig != "" {
		pf.Extends = absolute(req.TSConfig, workingDir)
	}
	return json.MarshalIndent(pf, "", "  ")
}

func absolute(path, base string) string {
	if filepath.IsAbs(path) || base == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// collect reads every emitted file under root, named relative to it.
func collect(root string) ([]ports.EmittedFile, error) {
	var files []ports.EmittedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, ports.EmittedFile{Name: filepath.ToSlash(rel), Contents: data})
		return nil
	})
	return files, err
}
