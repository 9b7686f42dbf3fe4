package main

import (
	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// assetsCmd represents the assets command
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List or change the default external libraries",
	Long: `The assets command lists the external CSS/JS libraries that can be injected
into base.html, and which of them are selected by default.`,
	RunE: runAssets,
}

func init() {
	assetsCmd.Flags().StringSlice("select", nil, "Select a library by default (repeatable)")
	assetsCmd.Flags().StringSlice("deselect", nil, "Deselect a library (repeatable)")
}

func runAssets(cmd *cobra.Command, args []string) error {
	sel, _ := cmd.Flags().GetStringSlice("select")
	desel, _ := cmd.Flags().GetStringSlice("deselect")

	changed, err := applySelection(sel, desel, app.cfg.SetAssetSelected, "external library")
	if err != nil {
		return err
	}
	if changed {
		saveConfig()
	}

	ui.PrintHeader("External libraries")
	for _, a := range app.cfg.Assets {
		printSelectable(a.Name, a.Selected)
	}
	return nil
}
