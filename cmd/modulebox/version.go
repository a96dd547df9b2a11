// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("modulebox"), getVersionString())
			fmt.Fprintln(app.stdout, SubtitleStyle.Render(fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)))
		},
	}
}
