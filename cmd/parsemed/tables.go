package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgallion1/parsemed/internal/tables"
	"github.com/spf13/cobra"
)

var tablesJSON bool

var tablesCmd = &cobra.Command{
	Use:   "tables <file>",
	Short: "Print the TABLE n. blocks found in the document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := analyzeFile(args[0])
		if err != nil {
			return err
		}
		if tablesJSON {
			out := doc.Tables
			if out == nil {
				out = []string{}
			}
			return json.NewEncoder(os.Stdout).Encode(out)
		}
		if len(doc.Tables) == 0 {
			fmt.Fprintln(os.Stderr, "no tables found")
			return nil
		}
		fmt.Println(tables.Join(doc.Tables))
		return nil
	},
}

func init() {
	tablesCmd.Flags().BoolVar(&tablesJSON, "json", false, "Print the blocks as a JSON array")
	rootCmd.AddCommand(tablesCmd)
}
