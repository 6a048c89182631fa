package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/subscription"
)

var clientsAll bool

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List the wallet's VPN subscriptions",
	Args:  cobra.NoArgs,
	RunE:  runClients,
}

func init() {
	clientsCmd.Flags().BoolVar(&clientsAll, "all", false, "include expired subscriptions")
	rootCmd.AddCommand(clientsCmd)
}

func runClients(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass clients: %w", err)
	}
	defer e.Close()

	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass clients: %w", err)
	}
	cache, err := e.cache(cmd.Context(), w)
	if err != nil {
		return fmt.Errorf("wirepass clients: %w", err)
	}
	list, err := cache.Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("wirepass clients: %w", err)
	}

	now := time.Now()
	if !clientsAll {
		list = subscription.Active(list, now)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tREGION\tEXPIRES\tREMAINING")
	for _, c := range list {
		remaining := "expired"
		if !c.Expired(now) {
			remaining = c.Remaining(now).Truncate(time.Minute).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Region, c.Expiration.Local().Format(time.DateTime), remaining)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "as of %s\n", cache.FetchedAt().Local().Format(time.DateTime))
	return nil
}
