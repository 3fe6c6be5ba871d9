package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/me/rspd/pkg/model"
	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [owner]",
		Short: "Remove every queued command of an owner",
		Long:  "Remove every queued command of an owner. Defaults to --owner.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := flagOwner
			if len(args) == 1 {
				owner = args[0]
			}

			resp, err := client.Delete("/api/v1/owners/" + url.PathEscape(owner) + "/commands")
			if err != nil {
				return fmt.Errorf("cancel commands: %w", err)
			}

			var data model.RemoveResponse
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Owner %s: %d commands removed\n", data.Owner, data.Removed)
			return nil
		},
	}
}

func newUnsubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <handle>",
		Short: "Remove one subscription of --owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/owners/" + url.PathEscape(flagOwner) + "/subscriptions/" + url.PathEscape(args[0])
			resp, err := client.Delete(path)
			if err != nil {
				return fmt.Errorf("remove subscription: %w", err)
			}

			var data model.RemoveResponse
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subscription %s removed\n", data.Handle)
			return nil
		},
	}
}
