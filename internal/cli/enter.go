package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/me/rspd/pkg/model"
	"github.com/spf13/cobra"
)

// parseRegister parses the <board> <register> argument pair.
func parseRegister(args []string) (string, int, error) {
	reg, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid register %q", args[1])
	}
	return args[0], reg, nil
}

// parseValues accepts decimal, 0x hex or 0b binary register values.
func parseValues(args []string) ([]uint32, error) {
	vals := make([]uint32, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", a, err)
		}
		vals = append(vals, uint32(v))
	}
	return vals, nil
}

func enterCommand(out io.Writer, req model.CommandRequest) error {
	resp, err := client.Post("/api/v1/commands", req)
	if err != nil {
		return fmt.Errorf("enter command: %w", err)
	}

	var data model.EnterResponse
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Fprintf(out, "Command queued: %s\n", data.ID)
	fmt.Fprintf(out, "  Queue:     %s\n", data.Queue)
	fmt.Fprintf(out, "  Effective: %s\n", data.EffectiveAt)
	return nil
}

func newReadCmd() *cobra.Command {
	var count int
	var at int64
	cmd := &cobra.Command{
		Use:   "read <board> <register>",
		Short: "Queue a one-shot register read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, reg, err := parseRegister(args)
			if err != nil {
				return err
			}
			return enterCommand(cmd.OutOrStdout(), model.CommandRequest{
				Owner:     flagOwner,
				Board:     board,
				Register:  reg,
				Operation: model.OperationRead,
				Count:     count,
				At:        at,
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of consecutive registers")
	cmd.Flags().Int64Var(&at, "at", 0, "Effective time in Unix seconds (0 = as soon as possible)")
	return cmd
}

func newWriteCmd() *cobra.Command {
	var at int64
	cmd := &cobra.Command{
		Use:   "write <board> <register> <value>...",
		Short: "Queue a register write",
		Long:  "Queue a write of one or more consecutive registers. Values may be decimal, 0x hex or 0b binary.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, reg, err := parseRegister(args)
			if err != nil {
				return err
			}
			vals, err := parseValues(args[2:])
			if err != nil {
				return err
			}
			return enterCommand(cmd.OutOrStdout(), model.CommandRequest{
				Owner:     flagOwner,
				Board:     board,
				Register:  reg,
				Operation: model.OperationWrite,
				Values:    vals,
				At:        at,
			})
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "Effective time in Unix seconds (0 = as soon as possible)")
	return cmd
}

func newSubscribeCmd() *cobra.Command {
	var count int
	var at, period int64
	cmd := &cobra.Command{
		Use:   "subscribe <board> <register>",
		Short: "Queue a periodic register read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if period < 1 {
				return fmt.Errorf("--period must be at least 1 second")
			}
			board, reg, err := parseRegister(args)
			if err != nil {
				return err
			}
			return enterCommand(cmd.OutOrStdout(), model.CommandRequest{
				Owner:     flagOwner,
				Board:     board,
				Register:  reg,
				Operation: model.OperationRead,
				Count:     count,
				At:        at,
				Period:    period,
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of consecutive registers")
	cmd.Flags().Int64Var(&at, "at", 0, "First sample time in Unix seconds (0 = as soon as possible)")
	cmd.Flags().Int64Var(&period, "period", 1, "Seconds between samples")
	return cmd
}
