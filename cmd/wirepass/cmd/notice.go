package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// serviceNotice is shown until dismissed.
const serviceNotice = "VPN access is paid on-chain. Purchases take a few minutes to confirm;\n" +
	"run \"wirepass watch\" to follow a pending purchase."

var (
	noticeDismiss bool
	noticeReset   bool
)

var noticeCmd = &cobra.Command{
	Use:   "notice",
	Short: "Show or dismiss the service notice",
	Args:  cobra.NoArgs,
	RunE:  runNotice,
}

func init() {
	noticeCmd.Flags().BoolVar(&noticeDismiss, "dismiss", false, "stop showing the notice")
	noticeCmd.Flags().BoolVar(&noticeReset, "reset", false, "show the notice again")
	noticeCmd.MarkFlagsMutuallyExclusive("dismiss", "reset")
	rootCmd.AddCommand(noticeCmd)
}

func runNotice(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass notice: %w", err)
	}
	defer e.Close()

	ctx := cmd.Context()
	switch {
	case noticeDismiss:
		return e.prefs.SetBannerDismissed(ctx, true)
	case noticeReset:
		return e.prefs.SetBannerDismissed(ctx, false)
	}
	if !e.prefs.BannerDismissed(ctx) {
		fmt.Fprintln(cmd.OutOrStdout(), serviceNotice)
	}
	return nil
}
