package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/investigation"
)

var (
	auditEntity   string
	auditAction   string
	auditPageSize int
	auditPage     string
)

var auditCmd = &cobra.Command{
	Use:   "audit [PROJECT_ID]",
	Short: "Show a project's audit trail, or browse all events",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if len(args) == 1 {
			var trail investigation.AuditTrail
			if err := client.getJSON("/api/audit/"+url.PathEscape(args[0]), &trail); err != nil {
				return err
			}
			return printEvents(cmd, trail, trail.Events, "")
		}

		q := url.Values{}
		if auditEntity != "" {
			q.Set("entityType", auditEntity)
		}
		if auditAction != "" {
			q.Set("action", auditAction)
		}
		if auditPageSize > 0 {
			q.Set("pageSize", strconv.Itoa(auditPageSize))
		}
		if auditPage != "" {
			q.Set("pageToken", auditPage)
		}
		path := "/api/audit/v1/events"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var list audit.EventList
		if err := client.getJSON(path, &list); err != nil {
			return err
		}
		return printEvents(cmd, list, list.Events, list.NextPageToken)
	},
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditEntity, "entity-type", "", "Only events for Project or SourceLink")
	f.StringVar(&auditAction, "action", "", "Only events with this action")
	f.IntVar(&auditPageSize, "page-size", 0, "Events per page")
	f.StringVar(&auditPage, "page-token", "", "Page token from a previous call")
}

func printEvents(cmd *cobra.Command, raw any, events []audit.Event, next string) error {
	if structured() {
		return printOutput(cmd.OutOrStdout(), raw)
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.Timestamp, e.EntityType, e.EntityID, e.Action, e.ActorRole})
	}
	printTable(cmd.OutOrStdout(), []string{"Time", "Entity", "ID", "Action", "Role"}, rows)
	if next != "" {
		cmd.Printf("\nnext page: --page-token %s\n", next)
	}
	return nil
}
