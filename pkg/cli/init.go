package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a seed state file for a new store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		var name, kind string
		strict := false

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("What is the store called?").
					Placeholder("app").
					Value(&name).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("name is required")
						}
						return nil
					}),
				huh.NewSelect[string]().
					Title("What kind of state does it hold?").
					Options(
						huh.NewOption("Empty", "empty"),
						huh.NewOption("Todo list example", "todos"),
						huh.NewOption("Session example", "session"),
					).
					Value(&kind),
				huh.NewConfirm().
					Title("Enforce transition machines for every mutation (strict mode)?").
					Value(&strict),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}

		seed := map[string]any{}
		switch kind {
		case "todos":
			seed = map[string]any{
				"title": name,
				"todos": []any{},
			}
		case "session":
			seed = map[string]any{
				"auth": map[string]any{
					"current": "anonymous",
					"user":    nil,
				},
			}
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path := dir + "/" + name + ".seed.yaml"
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		data, err := yaml.Marshal(seed)
		if err != nil {
			return err
		}
		header := fmt.Sprintf("# Seed state for the %q store.\n# Strict mode: %v\n", name, strict)
		if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing seed file")
	rootCmd.AddCommand(initCmd)
}
