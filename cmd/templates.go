package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// templatesCmd represents the templates command
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the HTML template collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := absPath(app.cfg.TemplatesDir)
		collections, err := scaffold.ListCollections(dir)
		if err != nil {
			return err
		}
		if len(collections) == 0 {
			ui.PrintWarning("No template collections found in " + dir)
			return nil
		}

		ui.PrintHeader(fmt.Sprintf("Template collections in %s", dir))
		for _, c := range collections {
			fmt.Fprintln(ui.Output, "  "+c)
		}
		return nil
	},
}
