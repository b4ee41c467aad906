package cli

import (
	"strings"

	coreapp "nyein/internal/core/app"
	domain "nyein/internal/core/errors"
	"nyein/internal/ui/report"

	"github.com/spf13/cobra"
)

type bundleFlags struct {
	out              string
	check            bool
	noCheck          bool
	tsconfig         string
	renameDuplicates bool
	noBanner         bool
}

func (f *bundleFlags) register(cmd *cobra.Command, withCheck bool) {
	flags := cmd.Flags()
	flags.StringVarP(&f.out, "out", "o", "", "output directory (default [bundle] out_dir)")
	flags.StringVarP(&f.tsconfig, "project", "p", "", "tsconfig.json used for the type check")
	flags.BoolVar(&f.noCheck, "no-check", false, "skip the type check of the merged file")
	flags.BoolVar(&f.renameDuplicates, "rename-duplicates", false, "rename colliding top-level declarations instead of failing")
	flags.BoolVar(&f.noBanner, "no-banner", false, "omit the banner comment")
	if withCheck {
		flags.BoolVar(&f.check, "check", false, "compare with the existing output instead of writing it")
	}
}

// apply folds flag overrides into the loaded config and builds the request.
func (f *bundleFlags) apply(rt *runtime, entry string) (coreapp.BundleRequest, error) {
	if f.renameDuplicates {
		rt.cfg.Bundle.RenameDuplicates = true
	}
	if f.tsconfig != "" {
		p, err := absolute(f.tsconfig)
		if err != nil {
			return coreapp.BundleRequest{}, err
		}
		rt.cfg.Bundle.TSConfig = p
	}
	entryPath, err := absolute(entry)
	if err != nil {
		return coreapp.BundleRequest{}, err
	}
	out, err := absolute(f.out)
	if err != nil {
		return coreapp.BundleRequest{}, err
	}
	req := coreapp.BundleRequest{
		Entry:       entryPath,
		OutDir:      out,
		Check:       f.check,
		NoTypeCheck: f.noCheck,
	}
	if f.noBanner {
		empty := ""
		req.Banner = &empty
	}
	return req, nil
}

func newBundleCommand(rt *runtime) *cobra.Command {
	var flags bundleFlags
	cmd := &cobra.Command{
		Use:   "bundle <entry>",
		Short: "Merge the module tree rooted at entry into one file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.apply(rt, args[0])
			if err != nil {
				return err
			}
			a, err := rt.newApp()
			if err != nil {
				return err
			}
			res, err := a.Bundle(cmd.Context(), req)
			report.Bundle(rt.stderr, res)
			if err != nil {
				return err
			}
			if req.Check && !res.UpToDate {
				return errReported
			}
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newDtsCommand(rt *runtime) *cobra.Command {
	var out, tsconfig string
	cmd := &cobra.Command{
		Use:   "dts <entry>",
		Short: "Merge the module tree and emit one declaration file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := absolute(args[0])
			if err != nil {
				return err
			}
			req := coreapp.DtsRequest{Entry: entry}
			if req.OutDir, err = absolute(out); err != nil {
				return err
			}
			if req.TSConfig, err = absolute(tsconfig); err != nil {
				return err
			}
			a, err := rt.newApp()
			if err != nil {
				return err
			}
			res, err := a.Dts(cmd.Context(), req)
			report.Dts(rt.stderr, res)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default [bundle] out_dir)")
	cmd.Flags().StringVarP(&tsconfig, "project", "p", "", "tsconfig.json used for declaration emission")
	return cmd
}

func newNpmCommand(rt *runtime) *cobra.Command {
	var out, tsconfig string
	cmd := &cobra.Command{
		Use:   "npm",
		Short: "Build every [[npm.entries]] entry as CommonJS and ESM and update package.json",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := coreapp.NpmRequest{}
			var err error
			if req.OutDir, err = absolute(out); err != nil {
				return err
			}
			if req.TSConfig, err = absolute(tsconfig); err != nil {
				return err
			}
			a, err := rt.newApp()
			if err != nil {
				return err
			}
			res, err := a.Npm(cmd.Context(), req)
			report.Npm(rt.stderr, res)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default [npm] out_dir)")
	cmd.Flags().StringVarP(&tsconfig, "project", "p", "", "tsconfig.json used for both emit passes")
	return cmd
}

func newHistoryCommand(rt *runtime) *cobra.Command {
	var limit int
	var format string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent builds recorded in the history database",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "text" && format != "tsv" && format != "json" {
				return usageError{domain.Newf(domain.CodeValidationError, "unknown format %q (want text, tsv or json)", format)}
			}
			a, err := rt.newApp()
			if err != nil {
				return err
			}
			records, err := a.RecentBuilds(cmd.Context(), limit)
			if err != nil {
				return err
			}
			switch format {
			case "tsv":
				_, err = rt.stdout.Write(report.RenderHistoryTSV(records))
			case "json":
				var data []byte
				if data, err = report.RenderHistoryJSON(records); err == nil {
					rt.printf("%s\n", data)
				}
			default:
				report.History(rt.stdout, records)
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of builds to list")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, tsv or json")
	return cmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
