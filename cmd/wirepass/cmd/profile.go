package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile <client-id>",
	Short: "Get the OpenVPN profile URL of a subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass profile: %w", err)
	}
	defer e.Close()

	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass profile: %w", err)
	}
	url, err := e.challengeClient(w).FetchProfile(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("wirepass profile: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
