package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

var statusShowUnresolved bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrichment coverage",
	Long:  "Summarizes enriched, confirmed, and pushed sites, and optionally lists IPs whose ownership is still unresolved.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enriched, err := st.ListEnriched(ctx)
		if err != nil {
			return eris.Wrap(err, "list enriched")
		}
		ownership, err := st.ListIPOwnership(ctx)
		if err != nil {
			return eris.Wrap(err, "list ip ownership")
		}

		formatStatus(os.Stdout, enriched, ownership, statusShowUnresolved)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowUnresolved, "unresolved", false, "list IPs with Unknown ownership")
	rootCmd.AddCommand(statusCmd)
}

func formatStatus(out io.Writer, enriched []model.EnrichedCircuit, ownership []model.IpOwnership, showUnresolved bool) {
	var confirmed, pushed int
	for _, e := range enriched {
		if e.WAN1.Confirmed || e.WAN2.Confirmed {
			confirmed++
		}
		if e.PushedToDevice {
			pushed++
		}
	}

	var unresolved []string
	for _, o := range ownership {
		if o.Organization == model.OwnershipUnknown {
			unresolved = append(unresolved, o.IP)
		}
	}
	sort.Strings(unresolved)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ENRICHED\tCONFIRMED\tPUSHED\tCACHED IPS\tUNRESOLVED")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
		len(enriched), confirmed, pushed, len(ownership), len(unresolved))
	_ = w.Flush()

	if showUnresolved && len(unresolved) > 0 {
		_, _ = fmt.Fprintln(out)
		for _, ip := range unresolved {
			_, _ = fmt.Fprintln(out, ip)
		}
	}

	if len(enriched) == 0 {
		zap.L().Info("no enriched circuits found, run 'enrich' after importing a feed")
	}
}
