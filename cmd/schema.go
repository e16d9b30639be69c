package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/spigell/jd-matcher/internal/analyzer"
	"github.com/spigell/jd-matcher/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the fields extracted from a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		jsonSchema, _ := cmd.Flags().GetBool("json-schema")
		comparison, _ := cmd.Flags().GetBool("comparison")

		switch {
		case comparison:
			os.Stdout.Write(pretty.Pretty(analyzer.ComparisonSchema()))
		case jsonSchema:
			os.Stdout.Write(pretty.Pretty(schema.Default().JSONSchema()))
		default:
			fmt.Println(schema.Default().FieldsText())
		}
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().Bool("json-schema", false, "print the extraction fields as a JSON Schema")
	schemaCmd.Flags().Bool("comparison", false, "print the JSON Schema a comparison result must satisfy")
}
