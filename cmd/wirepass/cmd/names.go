package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/keys"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Manage local device names",
}

var namesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List named devices",
	Args:  cobra.NoArgs,
	RunE:  runNamesList,
}

var namesSetCmd = &cobra.Command{
	Use:   "set <pubkey> <name>",
	Short: "Name a device",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamesSet,
}

var namesRmCmd = &cobra.Command{
	Use:   "rm <pubkey>",
	Short: "Forget a device name",
	Args:  cobra.ExactArgs(1),
	RunE:  runNamesRm,
}

func init() {
	namesCmd.AddCommand(namesListCmd, namesSetCmd, namesRmCmd)
	rootCmd.AddCommand(namesCmd)
}

func runNamesList(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass names: %w", err)
	}
	defer e.Close()

	all := e.names.All(cmd.Context())
	pubkeys := make([]string, 0, len(all))
	for pk := range all {
		pubkeys = append(pubkeys, pk)
	}
	sort.Strings(pubkeys)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBKEY\tNAME\tCREATED")
	for _, pk := range pubkeys {
		entry := all[pk]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", pk, entry.Name, entry.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runNamesSet(cmd *cobra.Command, args []string) error {
	if _, err := keys.ParsePublicKey(args[0]); err != nil {
		return fmt.Errorf("wirepass names set: %w", err)
	}
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass names set: %w", err)
	}
	defer e.Close()

	if err := e.names.Set(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("wirepass names set: %w", err)
	}
	return nil
}

func runNamesRm(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass names rm: %w", err)
	}
	defer e.Close()

	if err := e.names.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("wirepass names rm: %w", err)
	}
	return nil
}
