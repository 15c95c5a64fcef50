package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/function61/gokit/httputils"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/taskrunner"
	"github.com/function61/lovebeat/pkg/lbmetrics"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	Addr          string
	AgentInterval time.Duration
	LabelsFile    string
}

func serveEntry() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start standalone server (REST API, metrics, notification agent)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := logex.StandardLogger()

			exitIfError(runServer(
				ossignal.InterruptOrTerminateBackgroundCtx(logger),
				opts,
				logger))
		},
	}

	cmd.Flags().StringVarP(&opts.Addr, "addr", "", ":80", "Address to listen on")
	cmd.Flags().DurationVarP(&opts.AgentInterval, "agent-interval", "", 0, "Run the SNS notification agent this often (0 = don't)")
	cmd.Flags().StringVarP(&opts.LabelsFile, "labels-file", "", os.Getenv("LOVEBEAT_LABELS_FILE"), "Label routing file to import and keep in sync")

	return cmd
}

func runServer(ctx context.Context, opts serveOptions, logger *log.Logger) error {
	metrics := lbmetrics.NewBundle()

	app, err := getApp(ctx, metrics.Metrics, logger)
	if err != nil {
		return err
	}
	defer app.Store.Close()

	if opts.LabelsFile != "" {
		if err := importLabelsFile(ctx, app, opts.LabelsFile); err != nil {
			return err
		}
	}

	var publisher notificationPublisherFn
	if opts.AgentInterval > 0 {
		publisher, err = newSnsPublisher()
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: newRestApi(app, metrics.Registry, time.Now),
	}

	tasks := taskrunner.New(ctx, logger)

	tasks.Start("listener "+srv.Addr, func(_ context.Context, _ string) error {
		return httputils.RemoveGracefulServerClosedError(srv.ListenAndServe())
	})

	tasks.Start("listenershutdowner", httputils.ServerShutdownTask(srv))

	if publisher != nil {
		tasks.Start("agent", func(ctx context.Context, _ string) error {
			return runAgentEvery(ctx, opts.AgentInterval, app, publisher, logger)
		})
	}

	if opts.LabelsFile != "" {
		tasks.Start("labelswatcher", func(ctx context.Context, _ string) error {
			return watchLabelsFile(ctx, opts.LabelsFile, func() error {
				return importLabelsFile(ctx, app, opts.LabelsFile)
			}, logger)
		})
	}

	return tasks.Wait()
}

// what the CloudWatch schedule does for Lambda
func runAgentEvery(
	ctx context.Context,
	interval time.Duration,
	app *lbstate.App,
	publisher notificationPublisherFn,
	logger *log.Logger,
) error {
	logl := logex.Levels(logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := runAgentPass(ctx, app, agentName(), publisher, now); err != nil {
				logl.Error.Printf("agent pass: %v", err)
			}
		}
	}
}
