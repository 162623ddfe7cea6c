package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/getgrove/grove/pkg/inspect"
)

var (
	watchFilter  string
	watchHistory bool
	watchTimeout time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <url>",
	Short: "Stream a running store's inspection feed",
	Long: `Watch connects to a store's inspection WebSocket endpoint and streams
its events: operations, mutations, flushes, and derived recomputes.

The filter is a glob matched against mutation paths in slash form, for
example 'todos/**' to see everything under $.todos.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := url.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		q := target.Query()
		if watchFilter != "" {
			q.Set("filter", watchFilter)
		}
		if watchHistory {
			q.Set("history", "1")
		}
		target.RawQuery = q.Encode()

		dialer := websocket.Dialer{HandshakeTimeout: watchTimeout}
		conn, resp, err := dialer.Dial(target.String(), nil)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("connection failed: %v (HTTP %d)", err, resp.StatusCode)
			}
			return fmt.Errorf("connection failed: %v", err)
		}
		defer conn.Close()
		fmt.Fprintf(os.Stderr, "watching %s\n", target.Host)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}

			if jsonOutput {
				fmt.Println(string(msg))
				continue
			}
			var ev inspect.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				fmt.Println(string(msg))
				continue
			}
			fmt.Println(formatEvent(ev))
		}
	},
}

func formatEvent(ev inspect.Event) string {
	ts := ev.Time.Format("15:04:05.000")
	switch ev.Kind {
	case inspect.KindOperationStart:
		return fmt.Sprintf("%s #%d op    > %s", ts, ev.Seq, ev.Operation)
	case inspect.KindOperationEnd:
		if ev.Error != "" {
			return fmt.Sprintf("%s #%d op    < %s failed: %s", ts, ev.Seq, ev.Operation, ev.Error)
		}
		return fmt.Sprintf("%s #%d op    < %s", ts, ev.Seq, ev.Operation)
	case inspect.KindMutation:
		return fmt.Sprintf("%s #%d mut   %s %s = %v", ts, ev.Seq, ev.Mutation, ev.Path, ev.Value)
	case inspect.KindFlush:
		return fmt.Sprintf("%s #%d flush %d paths, %d notified: %s",
			ts, ev.Seq, len(ev.Paths), ev.Notified, strings.Join(ev.Paths, ", "))
	case inspect.KindDerive:
		return fmt.Sprintf("%s #%d calc  %s", ts, ev.Seq, ev.Derived)
	default:
		return fmt.Sprintf("%s #%d %s", ts, ev.Seq, ev.Kind)
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchFilter, "filter", "", "Glob filter on mutation paths (slash form)")
	watchCmd.Flags().BoolVar(&watchHistory, "history", false, "Include retained event history")
	watchCmd.Flags().DurationVarP(&watchTimeout, "timeout", "t", 30*time.Second, "Connection timeout")
	rootCmd.AddCommand(watchCmd)
}
