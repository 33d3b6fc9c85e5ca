// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/install"
)

// newPlanCommand creates the `lodestone plan` command.
func newPlanCommand(app *App) *cobra.Command {
	var platformFlag string

	planCmd := &cobra.Command{
		Use:   "plan <manifest>",
		Short: "Show what an installation would download",
		Long: `Show what an installation would download, without downloading it.

Libraries are filtered by their rules for the target platform. A remote
manifest is fetched; nothing else touches the network.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return runPlan(cmd.Context(), app, args[0], platformFlag)
		},
	}

	planCmd.Flags().StringVarP(&platformFlag, "platform", "p", "", "target platform: auto, win32, win64, linux or osx (overrides config)")

	return planCmd
}

func runPlan(ctx context.Context, app *App, src, platformFlag string) error {
	s, err := app.session(ctx)
	if err != nil {
		return err
	}

	target, err := resolvePlatform(s, platformFlag)
	if err != nil {
		return app.fail(ExitUsage, err)
	}

	m, err := loadManifest(ctx, app.fetcher(s), src)
	if err != nil {
		return app.fail(ExitUsage, err)
	}

	printPlan(app, install.NewPlan(m, target))
	return nil
}

func printPlan(app *App, p install.Plan) {
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Plan for "+p.Version)+SubtitleStyle.Render(" ("+p.Platform.String()+")"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("Libraries (%d, %d native bundles):", len(p.Libraries), p.NativeCount())))
	for _, lib := range p.Libraries {
		fmt.Fprintf(w, "  %s\n", CmdStyle.Render(lib.Name))
		if lib.Artifact != "" {
			fmt.Fprintf(w, "    libraries/%s\n", lib.Artifact)
		}
		for _, n := range lib.Natives {
			fmt.Fprintf(w, "    natives   %s\n", n)
		}
		for _, problem := range lib.Problems {
			fmt.Fprintf(w, "    %s\n", WarningStyle.Render("! "+problem))
		}
	}

	if len(p.Excluded) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("Excluded by rules (%d):", len(p.Excluded))))
		fmt.Fprintf(w, "  %s\n", VerboseStyle.Render(strings.Join(p.Excluded, ", ")))
	}

	fmt.Fprintln(w)
	client := p.ClientURL
	if client == "" {
		client = WarningStyle.Render("(none)")
	} else {
		client = fetch.RedactURL(client)
	}
	fmt.Fprintf(w, "%s %s\n", CmdStyle.Render("Client:     "), client)
	fmt.Fprintf(w, "%s %s (%s)\n", CmdStyle.Render("Asset index:"), p.AssetIndex.ID, fetch.RedactURL(p.AssetIndex.URL))
}
