package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mohammad-safakhou/deepresearch/internal/schema"
	"github.com/mohammad-safakhou/deepresearch/tools"
	"github.com/spf13/cobra"
)

func schemaCMD() *cobra.Command {
	var validate string
	cmd := &cobra.Command{
		Use:   "schema [Plan|Critique|ResearchReport|tools]",
		Short: "Print the structured output schemas, or validate a captured payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if validate != "" {
					return fmt.Errorf("--validate needs a schema name")
				}
				for _, f := range schema.Formats() {
					fmt.Fprintln(out, f.Name)
				}
				fmt.Fprintln(out, "tools")
				return nil
			}
			if args[0] == "tools" {
				if validate != "" {
					return fmt.Errorf("tool definitions cannot validate payloads")
				}
				return writeJSON(out, tools.Definitions())
			}
			f, ok := schema.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown schema %q", args[0])
			}
			if validate == "" {
				return writeJSON(out, json.RawMessage(f.Schema))
			}
			payload, err := os.ReadFile(validate)
			if err != nil {
				return err
			}
			if err := f.Validate(payload); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: valid %s\n", validate, f.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&validate, "validate", "", "JSON file to check against the schema")
	return cmd
}
