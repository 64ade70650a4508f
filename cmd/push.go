package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/push"
)

var pushCmd = &cobra.Command{
	Use:   "push <site>",
	Short: "Write a site's confirmed circuits to its device notes",
	Long:  "Builds the canonical WAN note text from the confirmed interfaces, writes it to the appliance, and records the push.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		notes, err := push.NewWorkflow(st, client).Push(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("push complete", zap.String("site", args[0]), zap.String("notes", notes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
