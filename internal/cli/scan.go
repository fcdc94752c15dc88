package cli

import (
	"github.com/spf13/cobra"

	"github.com/createMonster/arbradar-sub000/internal/app"
)

var scanLimit int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one aggregation cycle and print the ranked routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Scan(cmd.Context(), app.ScanOptions{Limit: scanLimit})
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "Maximum symbols to print (0 = all)")
}
