package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/function61/gokit/ossignal"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func serviceEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "svc",
		Short: "Manage services",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls [label]",
		Short: "List services (of a label)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			label := lbdomain.LabelAll
			if len(args) == 1 {
				label = args[0]
			}

			exitIfError(serviceList(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				label))
		},
	})

	cmd.AddCommand(serviceTriggerEntry())

	maintType := string(lbdomain.MaintSoft)
	maintExpiry := int64(lbdomain.DefaultMaintDuration)

	maint := &cobra.Command{
		Use:   "maint [id]",
		Short: "Put a service in maintenance",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				return app.Maint(ctx, args[0], lbdomain.MaintType(maintType), maintExpiry, time.Now())
			}))
		},
	}

	maint.Flags().StringVarP(&maintType, "type", "t", maintType, "soft (ends at next heartbeat) or hard")
	maint.Flags().Int64VarP(&maintExpiry, "expiry", "e", maintExpiry, "Seconds from now")

	cmd.AddCommand(maint)

	cmd.AddCommand(&cobra.Command{
		Use:   "unmaint [id]",
		Short: "End maintenance",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				return app.Unmaint(ctx, args[0])
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a service",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				return app.Delete(ctx, args[0])
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history [id]",
		Short: "Show latest heartbeats",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(serviceHistory(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				args[0]))
		},
	})

	return cmd
}

func serviceTriggerEntry() *cobra.Command {
	labels := ""
	warning := int64(0)
	errorAfter := int64(0)

	cmd := &cobra.Command{
		Use:   "trigger [id]",
		Short: "Register a heartbeat",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req := lbstate.TriggerRequest{
				Labels: splitLabels(labels),
			}

			if cmd.Flags().Changed("warning") {
				req.Warning = &warning
			}
			if cmd.Flags().Changed("error") {
				req.Error = &errorAfter
			}

			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				return app.Trigger(ctx, args[0], req, time.Now())
			}))
		},
	}

	cmd.Flags().StringVarP(&labels, "labels", "l", labels, "Comma-separated labels (replaces current)")
	cmd.Flags().Int64VarP(&warning, "warning", "w", warning, "Warning threshold in seconds")
	cmd.Flags().Int64VarP(&errorAfter, "error", "e", errorAfter, "Error threshold in seconds")

	return cmd
}

func serviceList(ctx context.Context, label string) error {
	return withApp(ctx, func(ctx context.Context, app *lbstate.App) error {
		services, err := app.ListServices(ctx, label, time.Now())
		if err != nil {
			return err
		}

		view := termtables.CreateTable()
		view.AddHeaders("Service", "Status", "Last beat", "Warning", "Error", "Incident", "Labels")

		for _, service := range services {
			alert := service.State.Alert

			view.AddRow(
				service.Id,
				statusTag(service.State.Status),
				ago(service.State.Last.Delta),
				formatThreshold(service.Config.Heartbeat.Warning),
				formatThreshold(service.Config.Heartbeat.Error),
				fmt.Sprintf("#%d %s %s", alert.Id, alert.Status, alert.Workflow),
				strings.Join(service.Config.Labels, ", "))
		}

		fmt.Println(view.Render())

		fmt.Println(lbstate.AggregateStatus(services))

		return nil
	})
}

func serviceHistory(ctx context.Context, id string) error {
	return withApp(ctx, func(ctx context.Context, app *lbstate.App) error {
		history, err := app.History(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now()

		view := termtables.CreateTable()
		view.AddHeaders("Time", "Ago", "Value")

		for _, beat := range history {
			view.AddRow(
				time.Unix(beat.Ts, 0).UTC().Format(time.RFC3339),
				ago(now.Unix()-beat.Ts),
				fmt.Sprintf("%d", beat.Val))
		}

		fmt.Println(view.Render())

		return nil
	})
}

func formatThreshold(seconds *int64) string {
	if seconds == nil {
		return "-"
	}

	return pinterval(*seconds)
}

// opens the store for the duration of fn
func withApp(ctx context.Context, fn func(ctx context.Context, app *lbstate.App) error) error {
	app, err := getApp(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer app.Store.Close()

	return fn(ctx, app)
}
