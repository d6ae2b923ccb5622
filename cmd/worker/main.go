package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushub/clubsync/internal/setup"
	"github.com/campushub/clubsync/internal/worker/reconcile"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// WorkerLogDir specifies where worker log files are stored.
const WorkerLogDir = "logs/worker_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start the clubsync background workers",
		Commands: []*cli.Command{
			{
				Name:  "reconcile",
				Usage: "Start the counter reconciliation worker",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Run a single sweep and exit",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runReconcileWorker(ctx, c.Bool("once"))
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runReconcileWorker initializes the application and runs the sweep loop
// until interrupted.
func runReconcileWorker(ctx context.Context, once bool) error {
	app, err := setup.InitializeApp(ctx, "reconcile_worker", WorkerLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	if delay := app.Config.Worker.StartupDelayMs; delay > 0 {
		app.Logger.Info("Delaying worker startup", zap.Int("delayMs", delay))
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}

	logger := app.LogManager.GetWorkerLogger("reconcile")
	worker := reconcile.New(app, logger)

	if once {
		return worker.Sweep(ctx)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx)

	return nil
}
