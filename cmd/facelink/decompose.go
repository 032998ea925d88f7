package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelink/pkg/face"
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose [m0 m1 ... m15]",
	Short: "Decompose a column-major 4x4 pose matrix into Euler angles",
	Long: `Reads 16 numbers from the arguments, or from stdin when no arguments
are given (whitespace or comma separated), and prints pitch, yaw and roll in
degrees plus the translation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := args
		if len(fields) == 0 {
			var err error
			if fields, err = readFields(cmd.InOrStdin()); err != nil {
				return err
			}
		}
		m, err := parseMatrix(fields)
		if err != nil {
			return err
		}
		t, err := face.FromMatrix(m)
		if err != nil {
			return err
		}
		t.Matrix = nil

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(out).Encode(t)
		}
		fmt.Fprintf(out, "pitch %8.3f°\nyaw   %8.3f°\nroll  %8.3f°\n", t.Pitch, t.Yaw, t.Roll)
		fmt.Fprintf(out, "x     %8.4f\ny     %8.4f\nz     %8.4f\n", t.PositionX, t.PositionY, t.PositionZ)
		return nil
	},
}

func init() {
	decomposeCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(decomposeCmd)
}

func readFields(r io.Reader) ([]string, error) {
	var fields []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.ReplaceAll(sc.Text(), ",", " ")
		fields = append(fields, strings.Fields(line)...)
	}
	return fields, sc.Err()
}

func parseMatrix(fields []string) ([]float64, error) {
	var m []float64
	for _, f := range fields {
		for _, part := range strings.Split(f, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("matrix element %d: %w", len(m), err)
			}
			m = append(m, v)
		}
	}
	return m, nil
}
