package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/api"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect submitted purchases awaiting confirmation",
	Args:  cobra.NoArgs,
	RunE:  runPendingList,
}

var pendingRmCmd = &cobra.Command{
	Use:   "rm <client-id>",
	Short: "Stop tracking a purchase",
	Args:  cobra.ExactArgs(1),
	RunE:  runPendingRm,
}

var pendingCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune confirmed purchases older than a day",
	Args:  cobra.NoArgs,
	RunE:  runPendingCleanup,
}

func init() {
	pendingCmd.AddCommand(pendingRmCmd, pendingCleanupCmd)
	rootCmd.AddCommand(pendingCmd)
}

func runPendingList(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass pending: %w", err)
	}
	defer e.Close()

	now := time.Now()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tREGION\tDURATION\tSTATUS\tATTEMPTS\tAGE")
	for _, tx := range e.ledger.All(cmd.Context()) {
		dur := string(tx.Duration)
		if n, err := strconv.ParseInt(dur, 10, 64); err == nil {
			dur = api.DurationFromBackend(n).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			tx.ID, tx.Region, dur, tx.Status, tx.Attempts, tx.MaxAttempts,
			now.Sub(tx.PurchaseTime).Truncate(time.Second))
	}
	return tw.Flush()
}

func runPendingRm(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass pending rm: %w", err)
	}
	defer e.Close()

	if err := e.ledger.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("wirepass pending rm: %w", err)
	}
	return nil
}

func runPendingCleanup(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass pending cleanup: %w", err)
	}
	defer e.Close()

	n, err := e.ledger.Cleanup(cmd.Context())
	if err != nil {
		return fmt.Errorf("wirepass pending cleanup: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d confirmed purchase(s)\n", n)
	return nil
}
