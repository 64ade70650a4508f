package main

import (
	"github.com/spf13/cobra"

	"github.com/crestline-networks/circuit-cli/internal/push"
)

var (
	confirmWAN1 bool
	confirmWAN2 bool
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <site>",
	Short: "Mark a site's WAN interfaces as operator-validated",
	Long:  "Sets the confirmed flag without altering provider or speed. With no flags, both interfaces are confirmed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		wan1, wan2 := confirmWAN1, confirmWAN2
		if !wan1 && !wan2 {
			wan1, wan2 = true, true
		}
		return push.NewWorkflow(st, nil).Confirm(ctx, args[0], wan1, wan2)
	},
}

func init() {
	confirmCmd.Flags().BoolVar(&confirmWAN1, "wan1", false, "confirm WAN1 only")
	confirmCmd.Flags().BoolVar(&confirmWAN2, "wan2", false, "confirm WAN2 only")
	rootCmd.AddCommand(confirmCmd)
}
