package command

// root.go defines the root command for the mooshi CLI and its global flags.

import (
	"fmt"
	"os"

	"mooshihub/cmd/cli/authentication"

	"github.com/spf13/cobra"
)

var (
	apiURL string // Global flag for API server URL
	apiKey string // API key, falls back to the keyring
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mooshi",
	Short: "mooshi - mooshihub command line client",
	Long: `mooshi talks to a mooshihub API server. It can:
- Open a websocket session and keep it alive with heartbeats
- Issue and invalidate API keys (master key required)
- Upload, list and delete images on the CDN

Use "mooshi command --help" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("MOOSHI_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("MOOSHI_API_KEY"), "API key (defaults to the key saved with 'mooshi key save')")
}

// resolveAPIKey prefers --key, then the keyring.
func resolveAPIKey() (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	creds, err := authentication.GetCredentials()
	if err != nil {
		return "", err
	}
	return creds.APIKey, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
