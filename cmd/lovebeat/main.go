package main

import (
	"fmt"
	"os"
	"time"

	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/spf13/cobra"
)

func main() {
	app := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Dead man's switch for services that are supposed to check in",
		Version: dynversion.Version,
	}

	app.AddCommand(serviceEntry())

	app.AddCommand(agentEntry())

	app.AddCommand(labelEntry())

	app.AddCommand(beatEntry())

	app.AddCommand(serveEntry())

	app.AddCommand(&cobra.Command{
		Use:    "lambda",
		Hidden: true,
		Run: func(*cobra.Command, []string) {
			lambdaHandler()
		},
	})

	app.AddCommand(&cobra.Command{
		Use:    "lambda-scheduler",
		Short:  "Run what Lambda would invoke in response to scheduler event",
		Hidden: true,
		Run: func(*cobra.Command, []string) {
			logger := logex.StandardLogger()

			exitIfError(handleCloudwatchScheduledEvent(
				ossignal.InterruptOrTerminateBackgroundCtx(logger),
				time.Now(),
				logger))
		},
	})

	exitIfError(app.Execute())
}

func exitIfError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
