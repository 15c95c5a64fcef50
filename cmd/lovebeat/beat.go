package main

import (
	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/lovebeat/pkg/lbclient"
	"github.com/function61/lovebeat/pkg/lbtypes"
	"github.com/spf13/cobra"
)

// for cron jobs etc. that have this binary but no access to the store
func beatEntry() *cobra.Command {
	labels := ""
	warning := int64(0)
	errorAfter := int64(0)

	cmd := &cobra.Command{
		Use:   "beat [id]",
		Short: "Send a heartbeat to a running lovebeat (at $API_ENDPOINT)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			endpoint, err := envvar.Required("API_ENDPOINT")
			exitIfError(err)

			var warningPtr, errorPtr *int64
			if cmd.Flags().Changed("warning") {
				warningPtr = &warning
			}
			if cmd.Flags().Changed("error") {
				errorPtr = &errorAfter
			}

			exitIfError(lbclient.New(endpoint).Trigger(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				args[0],
				lbtypes.NewTriggerRequest(splitLabels(labels), warningPtr, errorPtr)))
		},
	}

	cmd.Flags().StringVarP(&labels, "labels", "l", labels, "Comma-separated labels (replaces current)")
	cmd.Flags().Int64VarP(&warning, "warning", "w", warning, "Warning threshold in seconds")
	cmd.Flags().Int64VarP(&errorAfter, "error", "e", errorAfter, "Error threshold in seconds")

	return cmd
}
