package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getgrove/grove/pkg/codec"
	"github.com/getgrove/grove/pkg/config"
	"github.com/getgrove/grove/pkg/store"
)

var (
	replaySeedPath string
	replayOutPath  string
)

var replayCmd = &cobra.Command{
	Use:   "replay <log.json>",
	Short: "Replay a mutation log onto seed state and print the result",
	Long: `Replay applies a recorded mutation log onto a fresh store, optionally
seeded from a YAML file, and prints the resulting state snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading log: %w", err)
		}
		entries, err := codec.ParseLog(data)
		if err != nil {
			return err
		}

		state := map[string]any{}
		if replaySeedPath != "" {
			state, err = config.LoadState(replaySeedPath)
			if err != nil {
				return err
			}
		}

		s, err := store.New(store.Config{State: state})
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Replay(context.Background(), entries); err != nil {
			return err
		}

		snapshot, err := s.Snapshot()
		if err != nil {
			return err
		}
		out, err := codec.MarshalSnapshot(snapshot)
		if err != nil {
			return err
		}

		if replayOutPath != "" {
			if err := os.WriteFile(replayOutPath, out, 0o644); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			fmt.Fprintf(os.Stderr, "replayed %d mutations to %s\n", len(entries), replayOutPath)
			return nil
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replaySeedPath, "seed", "", "YAML seed state to replay onto")
	replayCmd.Flags().StringVarP(&replayOutPath, "output", "o", "", "Write the resulting snapshot to a file")
	rootCmd.AddCommand(replayCmd)
}
