package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/api"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List regions and prices",
	Args:  cobra.NoArgs,
	RunE:  runRegions,
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}

func runRegions(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass regions: %w", err)
	}
	defer e.Close()

	rd, err := e.client.RefData(cmd.Context())
	if err != nil {
		return fmt.Errorf("wirepass regions: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "regions: %s\n\n", strings.Join(rd.Regions, ", "))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DURATION\tLENGTH\tPRICE")
	for _, p := range rd.Prices {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", p.Duration, api.DurationFromBackend(p.Duration), p.Price)
	}
	return tw.Flush()
}
