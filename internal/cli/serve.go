package cli

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/api"
	"github.com/ned0ra/diplom/internal/grpcserver"
	"github.com/ned0ra/diplom/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the read API",
	Long: `Creates the tables, runs the pipeline on SYNC_SCHEDULE (once right away),
serves the HTTP read API on HTTP_PORT and, when GRPC_PORT is set, the gRPC
health service. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(parent context.Context, a *App) error {
		ctx, cancel := context.WithCancel(parent)
		defer cancel()
		log := a.Log

		if err := a.Store.EnsureSchema(ctx); err != nil {
			return err
		}

		var lock scheduler.Locker
		if a.Redis != nil {
			lock = scheduler.NewRedisLock(a.Redis, "", 0)
		}
		sched, err := scheduler.New(a.Pipeline, lock, a.Config.Schedule, log.Named("scheduler"))
		if err != nil {
			return err
		}

		if !a.Config.LogDev {
			gin.SetMode(gin.ReleaseMode)
		}
		httpSrv, err := api.NewServer(":"+a.Config.HTTPPort, a.Store, a.Tracker, log.Named("api"))
		if err != nil {
			return err
		}

		errCh := make(chan error, 2)
		go func() {
			if err := httpSrv.Run(); err != nil {
				errCh <- err
			}
		}()

		var grpcSrv *grpcserver.Server
		if a.Config.GRPCPort != "" {
			grpcSrv = grpcserver.NewServer(a.Tracker, log.Named("grpc"))
			go func() {
				if err := grpcSrv.Serve(":" + a.Config.GRPCPort); err != nil {
					errCh <- err
				}
			}()
		}

		if err := sched.Start(ctx); err != nil {
			return err
		}

		var runErr error
		select {
		case <-ctx.Done():
			log.Info("shutting down")
		case runErr = <-errCh:
			log.Error("server failed", zap.Error(runErr))
		}

		cancel()
		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		if grpcSrv != nil {
			grpcSrv.Stop(shutdownCtx)
		}
		log.Info("stopped")
		return runErr
	})
}
