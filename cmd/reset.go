package main

import (
	"github.com/spf13/cobra"

	"github.com/crestline-networks/circuit-cli/internal/push"
)

var resetCmd = &cobra.Command{
	Use:   "reset <site>",
	Short: "Clear a site's confirmation and push state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return push.NewWorkflow(st, nil).Reset(ctx, args[0])
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
