package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelink/pkg/face"
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List the 52 action unit names in canonical order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(face.Names())
		}
		for i, name := range face.Names() {
			fmt.Fprintf(out, "%2d  %s\n", i, name)
		}
		return nil
	},
}

func init() {
	unitsCmd.Flags().Bool("json", false, "print as a JSON array")
	rootCmd.AddCommand(unitsCmd)
}
