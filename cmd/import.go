package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/dsrimport"
)

var importFeedPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the circuit provisioning feed",
	Long:  "Loads a DSR export (CSV or XLSX), upserts the order circuits, and records field-level changes as history.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := dsrimport.NewImporter(st).Run(ctx, importFeedPath)
		if err != nil {
			return eris.Wrap(err, "import feed")
		}

		zap.L().Info("import complete",
			zap.Int("rows", stats.RowsRead),
			zap.Int64("upserted", stats.Upserted),
			zap.Int("added", stats.Added),
			zap.Int("changed", stats.Changed),
			zap.String("file", importFeedPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFeedPath, "file", "", "path to the feed file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
