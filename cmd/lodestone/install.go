// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lodestone/lodestone/internal/install"
	"github.com/lodestone/lodestone/internal/issue"
	"github.com/lodestone/lodestone/internal/metrics"
	"github.com/lodestone/lodestone/pkg/platform"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "lodestone"

// installOptions are the flags of `lodestone install`.
type installOptions struct {
	dest        string
	platform    string
	reportPath  string
	metricsPath string
	strict      bool
}

// newInstallCommand creates the `lodestone install` command.
func newInstallCommand(app *App) *cobra.Command {
	opts := &installOptions{}

	installCmd := &cobra.Command{
		Use:   "install <manifest>",
		Short: "Install a version from a manifest file or URL",
		Long: `Install a version from a manifest file or URL.

The installation directory receives libraries/, natives/, assets/, .minecraft/
and client.jar. A failed download removes the directory again; assets that
could not be fetched are reported but do not fail the installation unless
--strict is set.

Exit codes:
  0  installed
  1  invalid flags, configuration or manifest
  2  installation failed
  3  installed with missing assets (--strict only)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return runInstall(cmd.Context(), app, args[0], opts)
		},
	}

	installCmd.Flags().StringVarP(&opts.dest, "dest", "d", "", "installation directory (default ./<version id>)")
	installCmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "target platform: auto, win32, win64, linux or osx (overrides config)")
	installCmd.Flags().StringVar(&opts.reportPath, "report", "", "write a TOML report of the installation to this file")
	installCmd.Flags().StringVar(&opts.metricsPath, "metrics-file", "", "write Prometheus metrics in text format to this file")
	installCmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with status 3 when assets are missing")

	return installCmd
}

func runInstall(ctx context.Context, app *App, src string, opts *installOptions) error {
	s, err := app.session(ctx)
	if err != nil {
		return err
	}

	target, err := resolvePlatform(s, opts.platform)
	if err != nil {
		return app.fail(ExitUsage, err)
	}

	fetcher := app.fetcher(s)
	m, err := loadManifest(ctx, fetcher, src)
	if err != nil {
		return app.fail(ExitUsage, err)
	}

	dest := opts.dest
	if dest == "" {
		var ok bool
		if dest, ok = defaultDest(m.ID); !ok {
			return app.fail(ExitUsage, issue.NewErrorContext().
				WithOperation("choose installation directory").
				WithResource(m.ID).
				WithSuggestion("Pass --dest; the version id is not a plain directory name").
				BuildError())
		}
	}

	var (
		registry *prometheus.Registry
		sink     metrics.Metrics = metrics.Noop{}
	)
	if opts.metricsPath != "" {
		registry = prometheus.NewRegistry()
		prom, err := metrics.NewProm(metricsNamespace, registry)
		if err != nil {
			return app.fail(ExitUsage, err)
		}
		sink = prom
	}

	installer := install.New(fetcher,
		install.WithPlatform(target),
		install.WithLogger(s.logger),
		install.WithMetrics(sink),
		install.WithAssetHost(s.cfg.Assets.Host),
		install.WithAssetWorkers(s.cfg.Assets.Workers),
		install.WithStateObserver(func(st install.State) {
			s.logger.Debug("installation state", "state", st)
		}),
	)

	report, installErr := installer.Install(ctx, dest, m)

	if registry != nil {
		if err := metrics.WriteTextfile(opts.metricsPath, registry); err != nil {
			app.warn(err.Error())
		}
	}

	if installErr != nil {
		return app.fail(ExitInstallFailed, describeInstallError(installErr, dest))
	}

	printSummary(app, report)

	if opts.reportPath != "" {
		if err := report.WriteTOML(opts.reportPath); err != nil {
			app.warn(err.Error())
		}
	}

	if missing := report.MissingAssets(); missing > 0 {
		app.warn(fmt.Sprintf("%d of %d asset objects could not be downloaded", missing, report.Assets.Unique))
		if s.verbose {
			for _, f := range report.Assets.Failed {
				fmt.Fprintln(app.stderr, VerboseStyle.Render("  "+f.Hash+" "+strings.Join(f.Names, ", ")+": "+f.Reason))
			}
		}
		if opts.strict {
			return &ExitError{Code: ExitIncomplete, Err: issue.NewErrorContext().
				WithOperation("download assets").
				WithResource(dest).
				WithIssue(issue.AssetsIncompleteId).
				BuildError()}
		}
	}

	return nil
}

// resolvePlatform picks the --platform flag over install.platform.
func resolvePlatform(s *session, flag string) (platform.Platform, error) {
	name := s.cfg.Install.Platform
	if flag != "" {
		name = flag
	}
	p, err := platform.Parse(name)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("resolve target platform").
			WithResource(name).
			WithIssue(issue.PlatformUnsupportedId).
			Wrap(err).
			BuildError()
	}
	return p, nil
}

// describeInstallError attaches the remediation for the failure kind.
func describeInstallError(err error, dest string) error {
	id := issue.DownloadFailedId
	var installErr *install.Error
	if errors.As(err, &installErr) && installErr.Kind() == install.KindExtraction {
		id = issue.ExtractionFailedId
	}
	return issue.NewErrorContext().
		WithOperation("install").
		WithResource(dest).
		WithIssue(id).
		Wrap(err).
		BuildError()
}

func printSummary(app *App, r *install.Report) {
	w := app.stdout
	fmt.Fprintln(w, SuccessStyle.Render("✓ Installed ")+TitleStyle.Render(r.Version)+SubtitleStyle.Render(" ("+r.Platform.String()+")"))
	fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render("Destination:"), r.Destination)
	fmt.Fprintf(w, "  %s %d\n", CmdStyle.Render("Libraries:  "), r.Libraries)
	fmt.Fprintf(w, "  %s %d\n", CmdStyle.Render("Natives:    "), r.Natives)
	fmt.Fprintf(w, "  %s %d/%d objects (%d names)\n", CmdStyle.Render("Assets:     "), r.Assets.Fetched, r.Assets.Unique, r.Assets.Total)
	fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render("Downloaded: "), humanize.Bytes(uint64(max(r.Bytes, 0))))
	fmt.Fprintf(w, "  %s %s\n", CmdStyle.Render("Elapsed:    "), r.Duration.Round(time.Millisecond))
}
