package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/function61/gokit/ossignal"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func agentEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Act as an alerting agent",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "feed [agent]",
		Short: "List incidents the agent should notify about",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(agentFeed(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				args[0]))
		},
	})

	cmd.AddCommand(agentActionEntry("claim", "Claim an incident", func(app *lbstate.App) agentActionFn {
		return app.Claim
	}))

	cmd.AddCommand(agentActionEntry("confirm", "Confirm an incident was notified about", func(app *lbstate.App) agentActionFn {
		return app.Confirm
	}))

	return cmd
}

func agentActionEntry(use string, short string, action func(*lbstate.App) agentActionFn) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [agent] [service] [incident] [status]",
		Short: short,
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			incidentId, err := strconv.ParseInt(args[2], 10, 64)
			exitIfError(err)

			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				result, err := action(app)(ctx, args[0], args[1], incidentId, lbdomain.Status(args[3]))
				if err != nil {
					return err
				}

				fmt.Println(result)

				return nil
			}))
		},
	}
}

func agentFeed(ctx context.Context, agent string) error {
	return withApp(ctx, func(ctx context.Context, app *lbstate.App) error {
		feed, err := app.AlertFeed(ctx, agent, time.Now())
		if err != nil {
			return err
		}

		view := termtables.CreateTable()
		view.AddHeaders("Service", "Incident", "Severity", "Recipients")

		for _, item := range feed {
			view.AddRow(
				item.Service,
				fmt.Sprintf("#%d %s", item.IncidentId, item.IncidentStatus),
				string(item.Severity),
				strings.Join(item.Recipients, ", "))
		}

		fmt.Println(view.Render())

		return nil
	})
}
