package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ned0ra/diplom/internal/pipeline"
	"github.com/ned0ra/diplom/internal/syncer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long:  `Fetches, prepares and synchronises one batch of vacancies, then exits.`,
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare a batch and store it for a later sync",
	Long: `Runs the prepare unit and stores the batch in Redis under a new run id.
Pass the printed run id to "sync --run-id". Requires REDIS_URL.`,
	Args: cobra.NoArgs,
	RunE: runPrepare,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise a prepared batch",
	Long:  `Loads the batch stored by "prepare" and writes it to the store.`,
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the tables and load an initial batch",
	Long: `Creates the region, company and vacancy tables if needed and inserts an
initial batch of vacancies. Existing rows are never updated.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	syncRunID  string
	initMax    int
	schemaOnly bool
)

// errNoSharedHandoff is returned by prepare and sync without Redis.
var errNoSharedHandoff = errors.New("REDIS_URL is required to hand a batch between prepare and sync")

func init() {
	syncCmd.Flags().StringVar(&syncRunID, "run-id", "", "Run id printed by prepare")
	_ = syncCmd.MarkFlagRequired("run-id")

	initCmd.Flags().IntVar(&initMax, "max", pipeline.InitialMaxVacancies, "Maximum number of vacancies to load")
	initCmd.Flags().BoolVar(&schemaOnly, "schema-only", false, "Create the tables without loading data")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(initCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *App) error {
		if err := a.Store.EnsureSchema(ctx); err != nil {
			return err
		}
		run, err := a.Pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("run %s failed: %w", run.ID, err)
		}
		cmd.Printf("Run %s %s: fetched %d, skipped %d\n", run.ID, run.State, run.Fetched, run.Skipped)
		printReport(cmd, run.Report)
		return nil
	})
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *App) error {
		if !a.SharedHandoff {
			return errNoSharedHandoff
		}
		id, res, err := a.Pipeline.PrepareOnly(ctx)
		if err != nil {
			return fmt.Errorf("prepare failed: %w", err)
		}
		cmd.Printf("Prepared %d regions, %d companies, %d vacancies (fetched %d, skipped %d)\n",
			len(res.Batch.Regions), len(res.Batch.Companies), len(res.Batch.Vacancies), res.Fetched, len(res.Skipped))
		cmd.Println(id)
		return nil
	})
}

func runSync(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *App) error {
		if !a.SharedHandoff {
			return errNoSharedHandoff
		}
		if err := a.Store.EnsureSchema(ctx); err != nil {
			return err
		}
		rep, err := a.Pipeline.SyncOnly(ctx, syncRunID)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printReport(cmd, rep)
		return nil
	})
}

func runInit(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *App) error {
		if err := a.Store.EnsureSchema(ctx); err != nil {
			return err
		}
		cmd.Println("Tables ready.")
		if schemaOnly {
			return nil
		}
		rep, err := a.Pipeline.InitialLoad(ctx, initMax)
		if err != nil {
			return fmt.Errorf("initial load failed: %w", err)
		}
		printReport(cmd, rep)
		return nil
	})
}

func printReport(cmd *cobra.Command, r syncer.Report) {
	cmd.Printf("Regions inserted:   %d\n", r.RegionsInserted)
	cmd.Printf("Companies inserted: %d\n", r.CompaniesInserted)
	cmd.Printf("Vacancies inserted: %d\n", r.VacanciesInserted)
	cmd.Printf("Vacancies updated:  %d\n", r.VacanciesUpdated)
}
