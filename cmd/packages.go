package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// packagesCmd represents the packages command
var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List or change the default Django packages",
	Long: `The packages command lists the Django packages djassist knows about and
which of them are selected by default. Package apps, middleware and extra
settings come from the config file's django_packages section.`,
	RunE: runPackages,
}

func init() {
	packagesCmd.Flags().StringSlice("select", nil, "Select a package by default (repeatable)")
	packagesCmd.Flags().StringSlice("deselect", nil, "Deselect a package (repeatable)")
}

func runPackages(cmd *cobra.Command, args []string) error {
	sel, _ := cmd.Flags().GetStringSlice("select")
	desel, _ := cmd.Flags().GetStringSlice("deselect")

	changed, err := applySelection(sel, desel, app.cfg.SetPackageSelected, "package")
	if err != nil {
		return err
	}
	if changed {
		saveConfig()
	}

	ui.PrintHeader("Django packages")
	for _, p := range app.cfg.Packages {
		printSelectable(p.Name, p.Selected)
	}
	return nil
}

// applySelection runs set for every name, failing on the first unknown one.
func applySelection(sel, desel []string, set func(string, bool) bool, kind string) (bool, error) {
	for _, name := range sel {
		if !set(name, true) {
			return false, fmt.Errorf("%w: unknown %s %q", scaffold.ErrValidation, kind, name)
		}
	}
	for _, name := range desel {
		if !set(name, false) {
			return false, fmt.Errorf("%w: unknown %s %q", scaffold.ErrValidation, kind, name)
		}
	}
	return len(sel)+len(desel) > 0, nil
}

func printSelectable(name string, selected bool) {
	if selected {
		ui.PrintSuccess(name)
	} else {
		fmt.Fprintln(ui.Output, "  "+name)
	}
}
