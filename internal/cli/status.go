package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/pkg/model"
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <command_id>",
		Short: "Show one journaled command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/commands/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("get command: %w", err)
			}

			var c model.CommandRecord
			if err := json.Unmarshal(resp.Data, &c); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Command: %s\n", c.ID)
			fmt.Fprintf(out, "  Owner:     %s\n", c.Owner)
			fmt.Fprintf(out, "  Operation: %s %s[%d] x%d\n", c.Operation, c.Board, c.Register, c.Count)
			if c.Period > 0 {
				fmt.Fprintf(out, "  Period:    %ds\n", c.Period)
			}
			fmt.Fprintf(out, "  Effective: %s\n", c.EffectiveAt)
			fmt.Fprintf(out, "  State:     %s\n", c.State)
			if c.Result != "" {
				fmt.Fprintf(out, "  Result:    %s\n", c.Result)
			}
			if len(c.Values) > 0 {
				fmt.Fprintf(out, "  Values:    %s\n", formatValues(c.Values))
			}
			if c.Samples > 0 {
				fmt.Fprintf(out, "  Samples:   %d\n", c.Samples)
			}
			if c.CompletedAt != nil {
				fmt.Fprintf(out, "  Completed: %s\n", c.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func formatValues(vals []uint32) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("0x%08x", v)
	}
	return strings.Join(parts, " ")
}

func newCacheCmd() *cobra.Command {
	var back, text bool
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show the register cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if back {
				q.Set("buffer", "back")
			}
			out := cmd.OutOrStdout()
			if text {
				q.Set("format", "text")
				body, err := client.GetText("/api/v1/cache?" + q.Encode())
				if err != nil {
					return fmt.Errorf("get cache: %w", err)
				}
				fmt.Fprint(out, body)
				return nil
			}

			path := "/api/v1/cache"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("get cache: %w", err)
			}
			var snap cache.Snapshot
			if err := json.Unmarshal(resp.Data, &snap); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Fprintf(out, "Time: %s  Next update: %s\n", snap.Time, snap.NextUpdate)
			names := make([]string, 0, len(snap.Boards))
			for name := range snap.Boards {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%-8s %s\n", name, formatValues(snap.Boards[name]))
				if p := snap.Pending[name]; len(p) > 0 {
					fmt.Fprintf(out, "         pending: %v\n", p)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&back, "back", false, "Show the back buffer")
	cmd.Flags().BoolVar(&text, "text", false, "Print the server's plain-text dump")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler state and queue lengths",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/scheduler")
			if err != nil {
				return fmt.Errorf("get scheduler status: %w", err)
			}

			var st model.SchedulerStatus
			if err := json.Unmarshal(resp.Data, &st); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scheduler: %s\n", st.State)
			fmt.Fprintf(out, "  Current:  %s\n", st.CurrentTime)
			fmt.Fprintf(out, "  Queues:   later=%d periodic=%d now=%d done=%d\n", st.Later, st.Periodic, st.Now, st.Done)
			fmt.Fprintf(out, "  Rounds:   %d (%d forced)\n", st.Rounds, st.Forced)

			ports := make([]string, 0, len(st.Ports))
			for p := range st.Ports {
				ports = append(ports, p)
			}
			sort.Strings(ports)
			for _, p := range ports {
				fmt.Fprintf(out, "  %-8s  %s\n", p, st.Ports[p])
			}
			return nil
		},
	}
}
