package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/adminapi"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret [secret]",
	Short: "Generate an Argon2id hash for the admin API shared secret",
	Long: `Generate an Argon2id PHC-format hash of a shared secret for use in
admin.secret_hash.

Example:
  relaygate hash-secret "my-admin-secret"

Security note: the secret will appear in shell history. Consider
clearing history after use or piping from an environment variable:
  relaygate hash-secret "$RELAYGATE_ADMIN_SECRET"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := adminapi.HashSecret(args[0])
		if err != nil {
			return fmt.Errorf("hashing secret: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashSecretCmd)
}
