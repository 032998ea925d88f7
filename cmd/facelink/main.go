// facelink: facial action unit tracking service.
// Remote capture clients stream blend shape scores; the tracker corrects,
// calibrates and smooths them and serves the result to dashboards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "facelink",
	Short:         "Facial action unit tracking service",
	Long:          `facelink receives blend shape scores from capture clients, runs them through the tracking pipeline and streams the result to dashboards.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
