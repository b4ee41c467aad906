package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	domain "nyein/internal/core/errors"
	"nyein/internal/ui/report"

	"github.com/spf13/cobra"
)

const versionString = "0.1.0"

// errReported is returned by commands that already rendered why they failed.
var errReported = errors.New("failure already reported")

// usageError marks a problem with the command line itself.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// Run executes the command line and returns the process exit status:
// 0 on success, 1 when an operation fails, 2 for usage errors.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr, coreAppFactory{})
}

func run(args []string, stdout, stderr io.Writer, factory appFactory) int {
	rt := newRuntime(stdout, stderr, factory)
	defer rt.close()

	root := newRootCommand(rt)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}

	var usage usageError
	if !rt.started || errors.As(err, &usage) {
		fmt.Fprintf(stderr, "error: %v\n\n%s", err, cmd.UsageString())
		return 2
	}
	if !errors.Is(err, errReported) {
		report.Error(stderr, err)
	}
	return domain.ExitCode(err)
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "nyein",
		Short:         "Merge a TypeScript or JavaScript module tree into one file",
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.prepare(cmd.Context())
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&rt.opts.configPath, "config", "", "path to nyein.toml (default ./nyein.toml when present)")
	flags.BoolVarP(&rt.opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newBundleCommand(rt),
		newDtsCommand(rt),
		newNpmCommand(rt),
		newWatchCommand(rt),
		newHistoryCommand(rt),
	)
	return root
}
