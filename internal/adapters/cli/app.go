// Package cli implements wastectl, the operator command line for the waste
// metrics database.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	pg "wastemetrics/internal/adapters/postgres"
	"wastemetrics/internal/app"
	"wastemetrics/internal/config"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/services/charts"
	importrunner "wastemetrics/internal/workers/importrunner"
)

// CLIApp is the wastectl command tree.
type CLIApp struct {
	rootCmd *cobra.Command
	out     io.Writer

	configFile string
	logLevel   string
	query      charts.Query
}

func NewCLIApp(version string) *CLIApp {
	c := &CLIApp{out: os.Stdout}

	root := &cobra.Command{
		Use:           "wastectl",
		Short:         "Waste metrics operator tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.configFile != "" {
				return os.Setenv("CONFIG_FILE", c.configFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config-file", "C", "", "Path to a YAML chart settings file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().IntVar(&c.query.MinPeriod, "min-period", 0, "Earliest reporting period to include (default from config)")
	root.PersistentFlags().StringVar(&c.query.Sector, "sector", "", "Only include companies in this sector")

	report := &cobra.Command{
		Use:   "report",
		Short: "Print a chart report to the terminal",
	}
	report.AddCommand(
		&cobra.Command{
			Use:   "recovery",
			Short: "Recovery-rate distribution across companies",
			Args:  cobra.NoArgs,
			RunE:  c.runReportRecovery,
		},
		&cobra.Command{
			Use:   "trends",
			Short: "Recovery trends by reporting period",
			Args:  cobra.NoArgs,
			RunE:  c.runReportTrends,
		},
	)

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the distribution and trends to a PDF report",
		Args:  cobra.NoArgs,
		RunE:  c.runExport,
	}
	export.Flags().StringP("out", "o", "waste-report.pdf", "Output PDF path")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations",
			Args:  cobra.NoArgs,
			RunE:  c.runMigrate,
		},
		&cobra.Command{
			Use:   "import FILE",
			Short: "Import a waste-stream CSV and wait for the result",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runImport,
		},
		report,
		export,
	)
	c.rootCmd = root
	return c
}

func (c *CLIApp) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLIApp) logger() *slog.Logger {
	return observability.NewLogger(c.logLevel, "text")
}

func (c *CLIApp) build(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, c.logger(), c.metrics())
}

// metrics registers the collectors on a private registry. wastectl serves no
// /metrics endpoint.
func (c *CLIApp) metrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func (c *CLIApp) runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	db, err := pg.Connect(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	spinner, _ := pterm.DefaultSpinner.Start("Applying migrations")
	if err := pg.Migrate(cmd.Context(), db.SQL); err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Migrations applied")
	return nil
}

func (c *CLIApp) runImport(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	a, err := c.build(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	imp, err := a.Imports.Enqueue(cmd.Context(), payload)
	if err != nil {
		return err
	}
	spinner, _ := pterm.DefaultSpinner.Start("Importing " + args[0])
	procErr := importrunner.ProcessInline(cmd.Context(), a.DB, a.Processor, imp.ID)
	if errors.Is(procErr, importrunner.ErrAlreadyClaimed) {
		spinner.Info(fmt.Sprintf("Import %s was picked up by a server worker; check its status later", imp.ID))
		return nil
	}
	status, err := a.Imports.Status(cmd.Context(), imp.ID)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	if procErr != nil {
		spinner.Fail(fmt.Sprintf("Import %s failed: %v", imp.ID, procErr))
	} else {
		spinner.Success(fmt.Sprintf("Import %s: %d rows accepted, %d rejected", imp.ID, status.AcceptedRows, status.RejectedRows))
	}
	if len(status.Errors) > 0 {
		fmt.Fprintln(c.out, renderTable(rowErrorsTable(status.Errors)))
	}
	return procErr
}

func (c *CLIApp) runReportRecovery(cmd *cobra.Command, _ []string) error {
	a, err := c.build(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	dist, err := a.Charts.RecoveryDistribution(cmd.Context(), c.query)
	if errors.Is(err, charts.ErrNoData) {
		pterm.Warning.Println("No recovery data found")
		return nil
	}
	if err != nil {
		return err
	}
	pterm.DefaultSection.Println("Recovery rate distribution")
	fmt.Fprintln(c.out, renderTable(histogramTable(dist)))
	fmt.Fprintln(c.out, renderTable(statisticsTable(dist.Statistics)))
	fmt.Fprintln(c.out, renderTable(sectorTable(dist.SectorBreakdown)))
	return nil
}

func (c *CLIApp) runReportTrends(cmd *cobra.Command, _ []string) error {
	a, err := c.build(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	trends, err := a.Charts.RecoveryTrends(cmd.Context(), c.query)
	if errors.Is(err, charts.ErrNoData) {
		pterm.Warning.Println("No waste-stream data found")
		return nil
	}
	if err != nil {
		return err
	}
	pterm.DefaultSection.Println("Recovery trends")
	fmt.Fprintln(c.out, renderTable(trendsTable(trends.Points)))
	for _, line := range summaryLines(trends.Summary) {
		fmt.Fprintln(c.out, line)
	}
	return nil
}

func (c *CLIApp) runExport(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")
	a, err := c.build(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	report := Report{Generated: time.Now()}
	dist, err := a.Charts.RecoveryDistribution(cmd.Context(), c.query)
	switch {
	case err == nil:
		report.Distribution = &dist
	case !errors.Is(err, charts.ErrNoData):
		return err
	}
	trends, err := a.Charts.RecoveryTrends(cmd.Context(), c.query)
	switch {
	case err == nil:
		report.Trends = &trends
	case !errors.Is(err, charts.ErrNoData):
		return err
	}

	var buf bytes.Buffer
	if err := WritePDF(&buf, report); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	pterm.Success.Printfln("Report written to %s", out)
	return nil
}
