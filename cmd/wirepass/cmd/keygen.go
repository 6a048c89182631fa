package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/keys"
)

var keygenFromJWK string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a WireGuard keypair",
	Long: "Generate a fresh X25519 keypair and print both keys in base64.\n" +
		"With --from-jwk, import an OKP/X25519 JWK exported by a browser session instead.",
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenFromJWK, "from-jwk", "", "read a JWK private key from this file")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	var kp *keys.Keypair
	var err error
	if keygenFromJWK != "" {
		data, rerr := os.ReadFile(keygenFromJWK)
		if rerr != nil {
			return fmt.Errorf("wirepass keygen: %w", rerr)
		}
		kp, err = keys.ParseJWK(data)
	} else {
		kp, err = keys.Generate()
	}
	if err != nil {
		return fmt.Errorf("wirepass keygen: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "PrivateKey = %s\n", kp.PrivateKeyString())
	fmt.Fprintf(out, "PublicKey  = %s\n", kp.PublicKeyString())
	return nil
}
