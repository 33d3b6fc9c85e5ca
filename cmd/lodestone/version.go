// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/lodestone/lodestone/pkg/platform"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and host platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(app.stdout, "lodestone %s\n", getVersionString())
			host := "unsupported"
			if p, err := platform.Detect(); err == nil {
				host = p.String()
			}
			fmt.Fprintf(app.stdout, "%s %s/%s (platform %s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH, host)
			return nil
		},
	}
}
