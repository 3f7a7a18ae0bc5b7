package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Print the document's sections as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := analyzeFile(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc.Sections)
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)
}
