package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/fsutil"
)

var (
	wgName string
	wgOut  string
)

var wgCmd = &cobra.Command{
	Use:   "wg",
	Short: "Manage WireGuard devices",
}

var wgRegisterCmd = &cobra.Command{
	Use:   "register <client-id>",
	Short: "Register a new device and write its config",
	Args:  cobra.ExactArgs(1),
	RunE:  runWGRegister,
}

var wgListCmd = &cobra.Command{
	Use:   "list <client-id>",
	Short: "List the devices of a subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runWGList,
}

var wgRmCmd = &cobra.Command{
	Use:   "rm <client-id> <pubkey>",
	Short: "Remove a device",
	Args:  cobra.ExactArgs(2),
	RunE:  runWGRm,
}

var wgConfigCmd = &cobra.Command{
	Use:   "config <client-id>",
	Short: "Download a config for a fresh keypair without registering it first",
	Args:  cobra.ExactArgs(1),
	RunE:  runWGConfig,
}

var wgRegenerateCmd = &cobra.Command{
	Use:   "regenerate <client-id> <pubkey>",
	Short: "Replace a device's key and write its new config",
	Args:  cobra.ExactArgs(2),
	RunE:  runWGRegenerate,
}

func init() {
	wgRegisterCmd.Flags().StringVar(&wgName, "name", "", "device name")
	for _, c := range []*cobra.Command{wgRegisterCmd, wgConfigCmd, wgRegenerateCmd} {
		c.Flags().StringVarP(&wgOut, "out", "o", "", "write the config to this file instead of stdout")
	}
	wgCmd.AddCommand(wgRegisterCmd, wgListCmd, wgRmCmd, wgConfigCmd, wgRegenerateCmd)
	rootCmd.AddCommand(wgCmd)
}

// writeConfig prints config or writes it to --out with owner-only
// permissions, since it contains the private key.
func writeConfig(cmd *cobra.Command, config string) error {
	if wgOut == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), config)
		return err
	}
	path, err := filepath.Abs(wgOut)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), []byte(config), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}

func runWGRegister(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass wg register: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass wg register: %w", err)
	}

	p, err := e.devices(w).Register(cmd.Context(), args[0], wgName)
	if err != nil {
		return fmt.Errorf("wirepass wg register: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "registered %s\n", p.Device.Pubkey)
	return writeConfig(cmd, p.Config)
}

func runWGList(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass wg list: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass wg list: %w", err)
	}

	list, err := e.devices(w).List(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("wirepass wg list: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBKEY\tNAME\tADDRESS\tCREATED")
	for _, d := range list {
		created := "-"
		if !d.CreatedAt.IsZero() {
			created = d.CreatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Pubkey, d.Name, d.Address, created)
	}
	return tw.Flush()
}

func runWGRm(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass wg rm: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass wg rm: %w", err)
	}

	if err := e.devices(w).Delete(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("wirepass wg rm: %w", err)
	}
	return nil
}

func runWGConfig(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass wg config: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass wg config: %w", err)
	}

	cfg, err := e.challengeClient(w).FetchWireGuardConfig(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("wirepass wg config: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "public key %s\n", cfg.Keypair.PublicKeyString())
	return writeConfig(cmd, cfg.Config)
}

func runWGRegenerate(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass wg regenerate: %w", err)
	}
	defer e.Close()
	w, err := e.wallet()
	if err != nil {
		return fmt.Errorf("wirepass wg regenerate: %w", err)
	}

	p, err := e.devices(w).Regenerate(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("wirepass wg regenerate: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "replaced %s with %s\n", args[1], p.Device.Pubkey)
	return writeConfig(cmd, p.Config)
}

