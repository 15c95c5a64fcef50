package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/function61/gokit/ossignal"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
)

func labelEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage labels and their alert routing",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List labels",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(labelList(ossignal.InterruptOrTerminateBackgroundCtx(nil)))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [label]",
		Short: "Show alert recipients of a label",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				conf, err := app.LabelConfig(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Println(routingTable(*conf))

				return nil
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [label] [warning|error:recipient ...]",
		Short: "Replace alert recipients of a label",
		Long:  "Example: label set ops warning:gtalk:foo@example.com error:sms:0015551234",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := labelConfigFromSpecs(args[1:])
			exitIfError(err)

			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				return app.SetLabelConfig(ctx, args[0], conf)
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [file.yml]",
		Short: "Import alert routing of many labels from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withApp(ossignal.InterruptOrTerminateBackgroundCtx(nil), func(ctx context.Context, app *lbstate.App) error {
				return importLabelsFile(ctx, app, args[0])
			}))
		},
	})

	return cmd
}

func labelList(ctx context.Context) error {
	return withApp(ctx, func(ctx context.Context, app *lbstate.App) error {
		labels, err := app.Labels(ctx)
		if err != nil {
			return err
		}

		fmt.Println(strings.Join(labels, "\n"))

		return nil
	})
}

func labelConfigFromSpecs(specs []string) (lbdomain.LabelConfig, error) {
	conf := lbdomain.LabelConfig{}

	for _, spec := range specs {
		typ, recipient, err := parseAlertSpec(spec)
		if err != nil {
			return conf, err
		}

		if typ == lbdomain.StatusWarning {
			conf.Alerts.Warning = append(conf.Alerts.Warning, recipient)
		} else {
			conf.Alerts.Error = append(conf.Alerts.Error, recipient)
		}
	}

	return conf, nil
}

func routingTable(conf lbdomain.LabelConfig) string {
	view := termtables.CreateTable()
	view.AddHeaders("Severity", "Recipient")

	for _, severity := range []lbdomain.Status{lbdomain.StatusWarning, lbdomain.StatusError} {
		for _, recipient := range conf.RecipientsFor(severity) {
			view.AddRow(string(severity), recipient)
		}
	}

	return view.Render()
}
