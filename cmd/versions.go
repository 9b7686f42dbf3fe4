package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/prober"
	"github.com/lupon1/Django-Project-Assistant/internal/runner"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List Python versions known to uv",
	Long: `The versions command prints the Python versions reported by 'uv python list'.
The list is cached in the config file; use --refresh to ask uv again. Versions
with a matching interpreter on this machine are marked (Installed).`,
	RunE: runVersions,
}

func init() {
	versionsCmd.Flags().BoolP("refresh", "r", false, "Ask uv again instead of using the cached list")
}

func runVersions(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")

	p := prober.New(prober.Options{Runner: runner.New(app.logger)})
	versions, err := loadVersions(cmd.Context(), p, refresh)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		ui.PrintWarning("uv reported no Python versions")
		return nil
	}

	ui.PrintHeader(fmt.Sprintf("Python versions (%d)", len(versions)))
	for _, v := range versionChoices(cmd.Context(), p, versions) {
		fmt.Fprintln(ui.Output, "  "+v)
	}
	return nil
}
