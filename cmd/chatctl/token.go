package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/remote"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var tokenQR bool

// tokenCmd talks to the development token endpoint, which chatd only
// mounts with --dev-tokens.
var tokenCmd = &cobra.Command{
	Use:   "token <member-id>",
	Short: "Issue a development token for a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = env.Logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		c := remote.New(env.Config.APIBaseURL, nil, remote.WithLogger(env.Logger.Named("remote")))
		resp, err := c.IssueToken(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(resp)
			return nil
		}

		if tokenQR {
			qr, err := qrcode.New(resp.Token, qrcode.Low)
			if err != nil {
				return fmt.Errorf("render qr: %w", err)
			}
			fmt.Print(qr.ToSmallString(false))
		}
		fmt.Println(resp.Token)
		fmt.Printf("expires %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenQR, "qr", false, "also print the token as a QR code")
}
