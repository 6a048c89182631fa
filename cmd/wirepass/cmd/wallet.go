package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the local signing wallet",
}

var walletInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a local wallet key",
	Args:  cobra.NoArgs,
	RunE:  runWalletInit,
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet address",
	Args:  cobra.NoArgs,
	RunE:  runWalletAddress,
}

func init() {
	walletCmd.AddCommand(walletInitCmd, walletAddressCmd)
	rootCmd.AddCommand(walletCmd)
}

func runWalletInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("wirepass wallet init: %w", err)
	}
	w, err := wallet.CreateLocal(cfg.Wallet.KeyFile, nil)
	if err != nil {
		return fmt.Errorf("wirepass wallet init: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\naddress %s\n", cfg.Wallet.KeyFile, w.PublicKey())
	return nil
}

func runWalletAddress(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("wirepass wallet address: %w", err)
	}
	w, err := wallet.LoadLocal(cfg.Wallet.KeyFile)
	if err != nil {
		return fmt.Errorf("wirepass wallet address: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), w.PublicKey())
	return nil
}
