package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/api/middleware"
	"github.com/dvloznov/psp-ledger/internal/app"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/dvloznov/psp-ledger/internal/pipeline"
	"github.com/dvloznov/psp-ledger/internal/reporting"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	decimal.MarshalJSONWithoutQuotes = true

	var err error
	switch os.Args[1] {
	case "ledger":
		err = runLedger(os.Args[2:])
	case "rollover":
		err = runRollover(os.Args[2:])
	case "period-summary":
		err = runPeriodSummary(os.Args[2:])
	case "set-allocation":
		err = runSetAllocation(os.Args[2:])
	case "set-rate":
		err = runSetRate(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "import-allocations":
		err = runImportAllocations(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("PSP Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ledger              Print the daily ledger as JSON")
	fmt.Println("  rollover            Print the per-PSP rollover summary as JSON")
	fmt.Println("  period-summary      Print the standardized commission summary for one PSP")
	fmt.Println("  set-allocation      Set the manual allocation for a PSP on a date")
	fmt.Println("  set-rate            Set the standard commission rate for a PSP")
	fmt.Println("  import              Import transactions from a CSV file or gs:// URI")
	fmt.Println("  import-allocations  Import allocations from a CSV file or gs:// URI")
	fmt.Println("  export              Write the ledger workbook to a file or GCS")
	fmt.Println("  token               Issue an API bearer token")
	fmt.Println("  help                Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env is the state shared by the commands that touch the repositories.
type env struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	log    zerolog.Logger
	stores *app.Stores
	svc    *reporting.Service
}

func (e *env) close() {
	if e.stores != nil {
		if err := e.stores.Close(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to close repositories")
		}
	}
	e.cancel()
}

// command parses args into a fresh flag set carrying the shared config flags plus
// whatever extra registers, then opens the repositories.
func command(name string, args []string, extra func(fs *flag.FlagSet)) (*env, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfg := config.Register(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// stdout carries the command's output.
	log, err := logger.NewWithConfigWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	ctx = logger.WithContext(ctx, log)

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, err
	}

	return &env{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		log:    log,
		stores: stores,
		svc:    reporting.NewService(stores.Transactions, stores.Allocations, stores.Rates, log),
	}, nil
}

// dateFlags registers -start-date and -end-date.
type dateFlags struct {
	start, end, psp *string
}

func registerDates(fs *flag.FlagSet) dateFlags {
	return dateFlags{
		start: fs.String("start-date", "", "Start date in YYYY-MM-DD format"),
		end:   fs.String("end-date", "", "End date in YYYY-MM-DD format"),
		psp:   fs.String("psp", "", "Restrict to one PSP"),
	}
}

func (d dateFlags) query() (reporting.Query, error) {
	q := reporting.Query{PSP: strings.TrimSpace(*d.psp)}
	var err error
	if *d.start != "" {
		if q.StartDate, err = civil.ParseDate(*d.start); err != nil {
			return q, fmt.Errorf("invalid -start-date %q, expected YYYY-MM-DD", *d.start)
		}
	}
	if *d.end != "" {
		if q.EndDate, err = civil.ParseDate(*d.end); err != nil {
			return q, fmt.Errorf("invalid -end-date %q, expected YYYY-MM-DD", *d.end)
		}
	}
	return q, q.Validate()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runLedger(args []string) error {
	var dates dateFlags
	e, err := command("ledger", args, func(fs *flag.FlagSet) { dates = registerDates(fs) })
	if err != nil {
		return err
	}
	defer e.close()

	q, err := dates.query()
	if err != nil {
		return err
	}

	result, err := e.svc.DailyLedger(e.ctx, q)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"ledger_data":          result.Days,
		"total_days":           len(result.Days),
		"period":               q.Period(),
		"validation_errors":    result.ValidationErrors,
		"skipped_transactions": result.Skipped,
		"fallback_classified":  result.FallbackClassified,
	})
}

func runRollover(args []string) error {
	var dates dateFlags
	e, err := command("rollover", args, func(fs *flag.FlagSet) { dates = registerDates(fs) })
	if err != nil {
		return err
	}
	defer e.close()

	q, err := dates.query()
	if err != nil {
		return err
	}

	summary, err := e.svc.RolloverSummary(e.ctx, q)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"psp_summary": summary,
		"total_psps":  len(summary),
	})
}

func runPeriodSummary(args []string) error {
	var dates dateFlags
	e, err := command("period-summary", args, func(fs *flag.FlagSet) { dates = registerDates(fs) })
	if err != nil {
		return err
	}
	defer e.close()

	q, err := dates.query()
	if err != nil {
		return err
	}

	summary, err := e.svc.PSPPeriodSummary(e.ctx, q.PSP, q.StartDate, q.EndDate)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runSetAllocation(args []string) error {
	var date, psp, amount *string
	e, err := command("set-allocation", args, func(fs *flag.FlagSet) {
		date = fs.String("date", "", "Business date in YYYY-MM-DD format (required)")
		psp = fs.String("psp", "", "PSP name (required)")
		amount = fs.String("amount", "0", "Allocation amount")
	})
	if err != nil {
		return err
	}
	defer e.close()

	d, err := civil.ParseDate(*date)
	if err != nil {
		return fmt.Errorf("invalid -date %q, expected YYYY-MM-DD", *date)
	}
	value, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("invalid -amount %q", *amount)
	}
	if e.cfg.PostgresDSN == "" {
		e.log.Warn().Msg("No Postgres DSN configured - the allocation will not outlive this process")
	}

	stored, err := e.svc.SetAllocation(e.ctx, d, *psp, value)
	if err != nil {
		return err
	}
	return printJSON(stored)
}

func runSetRate(args []string) error {
	var psp, rate *string
	var inactive *bool
	e, err := command("set-rate", args, func(fs *flag.FlagSet) {
		psp = fs.String("psp", "", "PSP name (required)")
		rate = fs.String("rate", "", "Commission rate as a fraction, e.g. 0.075 (required)")
		inactive = fs.Bool("inactive", false, "Store the rate as inactive")
	})
	if err != nil {
		return err
	}
	defer e.close()

	name := strings.TrimSpace(*psp)
	if name == "" {
		return fmt.Errorf("-psp is required")
	}
	value, err := decimal.NewFromString(*rate)
	if err != nil || value.IsNegative() || value.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid -rate %q, expected a fraction between 0 and 1", *rate)
	}

	r := domain.CommissionRate{PSPName: name, Rate: value, IsActive: !*inactive}
	if err := e.stores.Rates.SetCommissionRate(e.ctx, r); err != nil {
		return err
	}
	return printJSON(r)
}

func runImport(args []string) error {
	var source *string
	var fill, dryRun *bool
	e, err := command("import", args, func(fs *flag.FlagSet) {
		source = fs.String("file", "", "Local CSV path or gs:// URI (required)")
		fill = fs.Bool("fill-commission", false, "Charge each PSP's standard rate on rows without a commission")
		dryRun = fs.Bool("dry-run", false, "Validate without inserting")
	})
	if err != nil {
		return err
	}
	defer e.close()

	if *source == "" {
		return fmt.Errorf("-file is required")
	}

	importer := pipeline.NewImporter(gcsuploader.NewGCSStorageService(), e.stores.Transactions, e.stores.Allocations, e.stores.Rates, e.log)
	report, err := importer.ImportTransactions(e.ctx, *source, pipeline.TransactionOptions{FillCommission: *fill, DryRun: *dryRun})
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runImportAllocations(args []string) error {
	var source *string
	var dryRun *bool
	e, err := command("import-allocations", args, func(fs *flag.FlagSet) {
		source = fs.String("file", "", "Local CSV path or gs:// URI (required)")
		dryRun = fs.Bool("dry-run", false, "Validate without writing")
	})
	if err != nil {
		return err
	}
	defer e.close()

	if *source == "" {
		return fmt.Errorf("-file is required")
	}

	importer := pipeline.NewImporter(gcsuploader.NewGCSStorageService(), e.stores.Transactions, e.stores.Allocations, e.stores.Rates, e.log)
	report, err := importer.ImportAllocations(e.ctx, *source, *dryRun)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runExport(args []string) error {
	var dates dateFlags
	var out *string
	var upload *bool
	e, err := command("export", args, func(fs *flag.FlagSet) {
		dates = registerDates(fs)
		out = fs.String("out", "", "Output path (defaults to ledger-<timestamp>.xlsx)")
		upload = fs.Bool("upload", false, "Upload the workbook to -bucket instead of writing a local file")
	})
	if err != nil {
		return err
	}
	defer e.close()

	q, err := dates.query()
	if err != nil {
		return err
	}

	data, err := e.svc.ExportWorkbook(e.ctx, q)
	if err != nil {
		return err
	}

	name := *out
	if name == "" {
		name = fmt.Sprintf("ledger-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	}

	if *upload {
		if e.cfg.ExportBucket == "" {
			return fmt.Errorf("-upload requires -bucket")
		}
		uri, err := gcsuploader.UploadBytes(e.ctx, e.cfg.ExportBucket, filepath.ToSlash(filepath.Join("exports", filepath.Base(name))), gcsuploader.XLSXContentType, data)
		if err != nil {
			return err
		}
		fmt.Println(uri)
		return nil
	}

	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	fmt.Printf("Wrote %s (%s)\n", name, q.Period())
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	cfg := config.Register(fs)
	subject := fs.String("subject", "", "Token subject, e.g. the operator's email (required)")
	ttl := fs.Duration("ttl", 12*time.Hour, "Token lifetime")
	fs.Parse(args)

	if cfg.JWTSecret == "" {
		return fmt.Errorf("-jwt-secret (or JWT_SECRET) is required")
	}
	if *subject == "" {
		return fmt.Errorf("-subject is required")
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
