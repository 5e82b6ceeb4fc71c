package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mooshihub/cmd/cli/authentication"
	"mooshihub/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a websocket session",
	Long: `Register with the connection manager as --id and stay connected, sending
heartbeats at the interval the server asks for. Every stdin line is sent as a
MESSAGE; pushes from the server are printed. Type /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := resolveAPIKey()
		if err != nil {
			return err
		}

		id, _ := cmd.Flags().GetInt64("id")
		if !cmd.Flags().Changed("id") {
			if creds, err := authentication.GetCredentials(); err == nil && creds.ClientID != 0 {
				id = creds.ClientID
			}
		}
		name, _ := cmd.Flags().GetString("name")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("\n🔌 Connecting as client %d...\n", id)
		return client.Connect(ctx, client.ConnectOptions{
			Server:   apiURL,
			ClientID: id,
			APIKey:   key,
			Name:     name,
			In:       os.Stdin,
			Out:      os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().Int64P("id", "i", 1, "client id to register as")
	connectCmd.Flags().StringP("name", "n", "", "display name attached to your messages")
}
