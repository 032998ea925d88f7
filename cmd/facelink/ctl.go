package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelink/internal/httpc"
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running server",
}

func init() {
	ctlCmd.PersistentFlags().String("server", "http://localhost:8080", "server base URL")
	ctlCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print tracker state and counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := api(cmd).Status(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "Open a capture session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				resp, err := api(cmd).Start(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (session %s)\n", resp.State, resp.SessionID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the capture session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				resp, err := api(cmd).Stop(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.State)
				return nil
			},
		},
	)
	rootCmd.AddCommand(ctlCmd)
}

func api(cmd *cobra.Command) *httpc.API {
	server, _ := cmd.Flags().GetString("server")
	return httpc.NewAPI(server, nil)
}
