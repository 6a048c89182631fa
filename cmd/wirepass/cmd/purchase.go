package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/poller"
	"github.com/wirepass/wirepass/internal/purchase"
)

var (
	purchaseRegion   string
	purchaseDuration int64
	purchaseNoWatch  bool
)

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Buy VPN access",
	Long: "Build a purchase transaction for a region and duration, sign and submit it\n" +
		"with the wallet, and wait for the backend to confirm the new client.\n" +
		"Durations are the values listed by \"wirepass regions\".",
	Args: cobra.NoArgs,
	RunE: runPurchase,
}

var renewCmd = &cobra.Command{
	Use:   "renew <client-id>",
	Short: "Extend a subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runRenew,
}

func init() {
	purchaseCmd.Flags().StringVar(&purchaseRegion, "region", "", "region to buy access in (required)")
	purchaseCmd.Flags().Int64Var(&purchaseDuration, "duration", 0, "duration value from the price list (required)")
	purchaseCmd.Flags().BoolVar(&purchaseNoWatch, "no-watch", false, "return after submitting instead of waiting for confirmation")
	purchaseCmd.MarkFlagRequired("region")
	purchaseCmd.MarkFlagRequired("duration")

	renewCmd.Flags().Int64Var(&purchaseDuration, "duration", 0, "duration value from the price list (required)")
	renewCmd.MarkFlagRequired("duration")

	rootCmd.AddCommand(purchaseCmd, renewCmd)
}

func runPurchase(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass purchase: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass purchase: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cache, err := e.cache(ctx, w)
	if err != nil {
		return fmt.Errorf("wirepass purchase: %w", err)
	}
	out := cmd.OutOrStdout()
	p := e.poller(cache)
	p.SetOnChange(func(s poller.State) { printPollState(out, s) })

	var svc *purchase.Service
	if purchaseNoWatch {
		svc = e.purchaser(w, nil)
	} else {
		svc = e.purchaser(w, p)
	}

	res, err := svc.Purchase(ctx, purchaseRegion, purchaseDuration)
	if err != nil {
		return fmt.Errorf("wirepass purchase: %w", err)
	}
	if res.UnsignedTx != "" {
		fmt.Fprintf(out, "wallet cannot sign transactions; sign and submit this transaction for client %s:\n%s\n", res.ClientID, res.UnsignedTx)
		return nil
	}
	fmt.Fprintf(out, "submitted %s for client %s\n", res.TxHash, res.ClientID)
	if purchaseNoWatch {
		return nil
	}
	return waitForConfirmation(ctx, p)
}

func runRenew(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass renew: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass renew: %w", err)
	}

	res, err := e.purchaser(w, nil).Renew(cmd.Context(), args[0], purchaseDuration)
	if err != nil {
		return fmt.Errorf("wirepass renew: %w", err)
	}
	out := cmd.OutOrStdout()
	if res.UnsignedTx != "" {
		fmt.Fprintf(out, "wallet cannot sign transactions; sign and submit this renewal:\n%s\n", res.UnsignedTx)
		return nil
	}
	fmt.Fprintf(out, "submitted renewal %s for client %s\n", res.TxHash, res.ClientID)
	return nil
}
