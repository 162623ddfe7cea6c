package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getgrove/grove/pkg/codec"
)

var validateSchemaPath string

var validateCmd = &cobra.Command{
	Use:   "validate <snapshot.json>",
	Short: "Validate a state snapshot against a JSON Schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		snapshot, err := codec.UnmarshalSnapshot(data)
		if err != nil {
			return err
		}

		schemaData, err := os.ReadFile(validateSchemaPath)
		if err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		validator, err := codec.NewSchemaValidatorJSON(schemaData)
		if err != nil {
			return err
		}

		type validateResult struct {
			Valid bool   `json:"valid"`
			Error string `json:"error,omitempty"`
		}

		if err := validator.Validate(snapshot); err != nil {
			if jsonOutput {
				out, _ := json.MarshalIndent(validateResult{Valid: false, Error: err.Error()}, "", "  ")
				fmt.Println(string(out))
			} else {
				fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
			}
			return fmt.Errorf("snapshot is invalid")
		}

		if jsonOutput {
			out, _ := json.MarshalIndent(validateResult{Valid: true}, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println("valid")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "schema.json", "JSON Schema file")
	rootCmd.AddCommand(validateCmd)
}
