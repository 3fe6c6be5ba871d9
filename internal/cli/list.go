package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/me/rspd/pkg/model"
	"github.com/spf13/cobra"
)

func listQuery(limit int, owner, state string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if owner != "" {
		q.Set("owner", owner)
	}
	if state != "" {
		q.Set("state", strings.ToUpper(state))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func newListCmd() *cobra.Command {
	var limit int
	var owner, state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/commands" + listQuery(limit, owner, state))
			if err != nil {
				return fmt.Errorf("list commands: %w", err)
			}

			var data []model.CommandRecord
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(data) == 0 {
				fmt.Fprintln(out, "No commands found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-10s  %-6s  %-12s  %-10s  %s\n", "ID", "OWNER", "OP", "TARGET", "STATE", "EFFECTIVE")
			fmt.Fprintf(out, "%-40s  %-10s  %-6s  %-12s  %-10s  %s\n", "--", "-----", "--", "------", "-----", "---------")
			for _, c := range data {
				target := fmt.Sprintf("%s[%d]", c.Board, c.Register)
				fmt.Fprintf(out, "%-40s  %-10s  %-6s  %-12s  %-10s  %s\n", c.ID, c.Owner, c.Operation, target, c.State, c.EffectiveAt)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of commands")
	cmd.Flags().StringVar(&owner, "owner-filter", "", "Only commands of this owner")
	cmd.Flags().StringVar(&state, "state", "", "Only commands in this state (queued, completed, cancelled)")
	return cmd
}

func newRoundsCmd() *cobra.Command {
	var limit int
	var state string
	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "List recent synchronization rounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/rounds" + listQuery(limit, "", state))
			if err != nil {
				return fmt.Errorf("list rounds: %w", err)
			}

			var data []model.Round
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(data) == 0 {
				fmt.Fprintln(out, "No rounds recorded.")
				return nil
			}

			fmt.Fprintf(out, "%-24s  %-18s  %-8s  %s\n", "TICK", "RESULT", "COMMANDS", "INCOMPLETE")
			for _, r := range data {
				fmt.Fprintf(out, "%-24s  %-18s  %-8d  %s\n", r.Tick, r.Result, r.CommandsCompleted, strings.Join(r.IncompletePorts, ","))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of rounds")
	cmd.Flags().StringVar(&state, "result", "", "Only rounds with this result (completed, forced_incomplete)")
	return cmd
}
