package command

import (
	"fmt"

	"mooshihub/cmd/cli/authentication"
	"mooshihub/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

// keyCmd groups API key management
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "API key commands",
	Long:  `Store the API key used by this client, or issue and invalidate keys with the server's master key.`,
}

var keySaveCmd = &cobra.Command{
	Use:   "save <key>",
	Short: "Save an API key in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("id")
		if err := authentication.StoreCredentials(&authentication.StoredCredentials{
			APIKey:   args[0],
			ClientID: id,
			Server:   apiURL,
		}); err != nil {
			return fmt.Errorf("failed to save key: %w", err)
		}
		fmt.Println("✓ API key saved")
		return nil
	},
}

var keyForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove the saved API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteCredentials(); err != nil {
			return err
		}
		fmt.Println("✓ API key removed")
		return nil
	},
}

var keyNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Issue a new API key (master key required)",
	RunE: func(cmd *cobra.Command, args []string) error {
		master, _ := cmd.Flags().GetString("master")
		owner, _ := cmd.Flags().GetString("owner")
		save, _ := cmd.Flags().GetBool("save")

		key, err := client.NewHTTPClient(apiURL, "").NewKey(master, owner)
		if err != nil {
			return fmt.Errorf("failed to create key: %w", err)
		}
		fmt.Println(key)

		if save {
			return authentication.StoreCredentials(&authentication.StoredCredentials{APIKey: key, Server: apiURL})
		}
		return nil
	},
}

var keyInvalidateCmd = &cobra.Command{
	Use:   "invalidate <key>",
	Short: "Invalidate an API key (master key required)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		master, _ := cmd.Flags().GetString("master")
		if err := client.NewHTTPClient(apiURL, "").Invalidate(master, args[0]); err != nil {
			return fmt.Errorf("failed to invalidate key: %w", err)
		}
		fmt.Println("✓ API key invalidated")
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySaveCmd, keyForgetCmd, keyNewCmd, keyInvalidateCmd)
	rootCmd.AddCommand(keyCmd)

	keySaveCmd.Flags().Int64("id", 0, "default client id for 'mooshi connect'")

	keyNewCmd.Flags().StringP("master", "m", "", "server master key (required)")
	keyNewCmd.Flags().StringP("owner", "o", "", "owner recorded for the key")
	keyNewCmd.Flags().Bool("save", false, "save the new key in the keyring")
	keyNewCmd.MarkFlagRequired("master")

	keyInvalidateCmd.Flags().StringP("master", "m", "", "server master key (required)")
	keyInvalidateCmd.MarkFlagRequired("master")
}
