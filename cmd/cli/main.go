package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/bacs-export/internal/bacs"
	"github.com/dvloznov/bacs-export/internal/config"
	"github.com/dvloznov/bacs-export/internal/csvexport"
	"github.com/dvloznov/bacs-export/internal/export"
	"github.com/dvloznov/bacs-export/internal/gcsuploader"
	infraBQ "github.com/dvloznov/bacs-export/internal/infra/bigquery"
	"github.com/dvloznov/bacs-export/internal/logger"
	"github.com/dvloznov/bacs-export/internal/runs"
	"github.com/dvloznov/bacs-export/internal/runs/inmemory"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		runExport(log)
	case "runs":
		runRuns(log)
	case "upload":
		runUpload(log)
	case "fetch":
		runFetch(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("BACS Export CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  bacs-export <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  export    Build the BACS payment file for agencies or suppliers")
	fmt.Println("  runs      List recorded export runs")
	fmt.Println("  upload    Upload an export file to GCS")
	fmt.Println("  fetch     Download an uploaded export file from GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'bacs-export <command> -h' for more information on a command.")
}

func loadConfig(log zerolog.Logger) (*config.Config, zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg, logger.NewWithLevel(cfg.LogLevel)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	exportType := fs.String("type", "", "Export category: agency or supplier")
	outputDir := fs.String("output-dir", "", "Directory for the export file (overrides EXPORT_OUTPUT_DIR)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall time limit for the export")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(log)
	if *outputDir != "" {
		cfg.Export.OutputDir = *outputDir
	}

	selected, err := bacs.ParseExportType(*exportType)
	if err != nil {
		log.Fatal().Err(err).Msg("Usage: bacs-export export -type agency|supplier")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := infraBQ.NewStore(ctx, cfg.RecordStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer store.Close()

	var writer csvexport.Writer = csvexport.NewFileWriter(cfg.Export.OutputDir)
	if cfg.Upload.Enabled() {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()

		writer = &csvexport.UploadingWriter{
			Next:    writer,
			Storage: storage,
			Bucket:  cfg.Upload.Bucket,
			Prefix:  cfg.Upload.Prefix,
		}
	}

	deps := export.Dependencies{
		Payments:            store.Payments(),
		InvoiceTransactions: store.InvoiceTransactions(),
		Candidates:          store.Candidates(),
		Agencies:            store.Agencies(),
		Writer:              writer,
		Runs:                runRecorder(cfg, store),
	}

	svc, err := export.NewService(serviceConfig(cfg), deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create export service")
	}

	res, err := svc.Export(ctx, selected)
	if err != nil {
		log.Fatal().Err(err).Str("state", res.State.String()).Msg("Export failed")
	}

	printResult(os.Stdout, res)
}

// runRecorder persists runs to export_runs when EXPORT_RECORD_RUNS is on.
// Otherwise runs are tracked in memory for the life of the process only, so
// the result still carries a run id.
func runRecorder(cfg *config.Config, store *infraBQ.Store) runs.Recorder {
	if cfg.RecordRuns {
		return store.ExportRuns()
	}
	return inmemory.NewStore()
}

// serviceConfig maps process configuration onto the export service.
func serviceConfig(cfg *config.Config) export.Config {
	return export.Config{
		EnableAgencyPayments: cfg.Export.EnableAgencyPayments,
		AgencyFileName:       cfg.Export.AgencyFileName,
		SupplierFileName:     cfg.Export.SupplierFileName,
		Engine: bacs.Engine{
			NotAvailable:    cfg.Export.NotAvailableText,
			ReferencePrefix: cfg.Export.ReferencePrefix,
		},
	}
}

func printResult(w io.Writer, res *export.Result) {
	if res.Skipped {
		fmt.Fprintf(w, "%s payments are disabled; no file written.\n", res.ExportType)
		return
	}

	fmt.Fprintf(w, "Exported %d %s payment(s) to %s\n", res.RowCount, res.ExportType, res.FilePath)
	fmt.Fprintf(w, "Window: %s to %s\n",
		res.WindowStart.Format(bacs.ErrorDateLayout), res.WindowEnd.Format(bacs.ErrorDateLayout))
	if res.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", res.RunID)
	}
}

func runRuns(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	exportType := fs.String("type", "", "Only show runs of this category (agency or supplier)")
	status := fs.String("status", "", "Only show runs with this status (RUNNING, SUCCESS, FAILED)")
	limit := fs.Int("limit", 20, "Maximum number of runs to show")
	fs.Parse(os.Args[2:])

	cfg, log := loadConfig(log)

	filter := runs.Filter{Status: runs.Status(strings.ToUpper(*status)), Limit: *limit}
	if *exportType != "" {
		selected, err := bacs.ParseExportType(*exportType)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -type")
		}
		filter.ExportType = selected.String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := infraBQ.NewStore(ctx, cfg.RecordStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer store.Close()

	list, err := store.ExportRuns().ListRuns(ctx, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list export runs")
	}

	printRuns(os.Stdout, list)
}

func printRuns(w io.Writer, list []*runs.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tTYPE\tSTATUS\tSTARTED\tROWS\tFILE\tERROR")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID, r.ExportType, r.Status, r.StartedAt.Format(time.RFC3339), r.RowCount, r.FileName, r.ErrorMessage)
	}
	tw.Flush()
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv("EXPORT_UPLOAD_BUCKET"), "GCS bucket name (or set EXPORT_UPLOAD_BUCKET)")
	prefix := fs.String("prefix", os.Getenv("EXPORT_UPLOAD_PREFIX"), "Object name prefix (or set EXPORT_UPLOAD_PREFIX)")
	filePath := fs.String("file", "", "Path to local export file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: bacs-export upload -bucket NAME -file PATH [-prefix PREFIX]")
	}

	objectName := gcsuploader.ObjectName(*prefix, filepath.Base(*filePath))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := storage.UploadFile(ctx, *bucketName, objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcsuploader.ObjectURI(*bucketName, objectName))
}

func runFetch(log zerolog.Logger) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the export file")
	out := fs.String("out", "", "Local path to write (defaults to the object's file name)")
	fs.Parse(os.Args[2:])

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}
	if *out == "" {
		*out = gcsuploader.ExtractFilenameFromGCSURI(*gcsURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	data, err := storage.FetchFromGCS(ctx, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Fetch failed")
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write file")
	}

	fmt.Printf("Fetched %s to %s (%d bytes)\n", *gcsURI, *out, len(data))
}
