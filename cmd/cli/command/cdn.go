package command

import (
	"fmt"
	"os"

	"mooshihub/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var cdnCmd = &cobra.Command{
	Use:   "cdn",
	Short: "Image CDN commands",
	Long:  `Upload, list and delete the images stored under your API key.`,
}

var cdnUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a jpeg or png image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cdnClient()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		resp, err := c.Upload(args[0], data)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Println("✓", resp.Message)
		return nil
	},
}

var cdnListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your images",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cdnClient()
		if err != nil {
			return err
		}
		resp, err := c.ListFiles()
		if err != nil {
			return err
		}
		for _, f := range resp.Files {
			fmt.Printf("%-44s %8d  %s\n", f.Name, f.Size, f.URL)
		}
		fmt.Printf("%d file(s)\n", resp.Total)
		return nil
	},
}

var cdnDeleteCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete one of your images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cdnClient()
		if err != nil {
			return err
		}
		if err := c.DeleteFile(args[0]); err != nil {
			return err
		}
		fmt.Println("✓ deleted", args[0])
		return nil
	},
}

func cdnClient() (*client.HTTPClient, error) {
	key, err := resolveAPIKey()
	if err != nil {
		return nil, err
	}
	return client.NewHTTPClient(apiURL, key), nil
}

func init() {
	cdnCmd.AddCommand(cdnUploadCmd, cdnListCmd, cdnDeleteCmd)
	rootCmd.AddCommand(cdnCmd)
}
