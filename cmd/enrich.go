package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/crestline-networks/circuit-cli/internal/enrich"
	"github.com/crestline-networks/circuit-cli/internal/inventory"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run a batch enrichment pass over the appliance inventory",
	Long:  "Polls appliance WAN state, reconciles it against order circuits and IP ownership, and upserts the enriched records.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := initMeraki()
		if err != nil {
			return err
		}

		devices, err := inventory.NewCollector(client).Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "collect inventory")
		}

		engine, err := initEngine(ctx, st)
		if err != nil {
			return err
		}

		runner := enrich.NewRunner(st, engine, cfg.Enrich.Concurrency, cfg.Enrich.BatchSize)
		if _, err := runner.Run(ctx, devices); err != nil {
			return eris.Wrap(err, "enrichment run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
