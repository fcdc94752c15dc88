package cli

import (
	"github.com/spf13/cobra"

	"github.com/createMonster/arbradar-sub000/internal/app"
)

var (
	exportCSV    string
	exportPNG    string
	exportRoutes int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run one aggregation cycle and export its routes as CSV/PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			CSVPath:   exportCSV,
			PNGPath:   exportPNG,
			MaxRoutes: exportRoutes,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Write routes to this CSV file")
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Render a route chart to this PNG file")
	exportCmd.Flags().IntVar(&exportRoutes, "max-routes", 0, "Route cap (0 = config default)")
}
