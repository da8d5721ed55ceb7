package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"imagededup/analyzer"
	"imagededup/config"
	"imagededup/database"
	"imagededup/logging"
	"imagededup/report"
	"imagededup/scanner"
	"imagededup/signalhandler"
	"imagededup/transport"
	"imagededup/types"
	"imagededup/utils"
)

func main() {
	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments(os.Args)

	command, hasCommand := args["command"]

	// Set default database path
	dbPath := utils.GetDefaultDatabasePath()
	if customDB, ok := args["database"]; ok && customDB != "" {
		dbPath = customDB
	} else if customDB, ok := args["db"]; ok && customDB != "" {
		// Allow --db as an alias for --database
		dbPath = customDB
	}

	// Setup debug logging if enabled
	if _, ok := args["debug"]; ok {
		logPath := "imagededup.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath, true); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
		defer logging.CloseLogger()
	} else if logPath, ok := args["logfile"]; ok && logPath != "" {
		if err := logging.SetupLogger(logPath, false); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		}
		defer logging.CloseLogger()
	}

	// Check if required arguments are missing
	showUsage := !hasCommand
	if command == "analyze" && args["folder"] == "" {
		showUsage = true
	}
	if command == "search" && args["image"] == "" {
		showUsage = true
	}
	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	params, err := loadParams(args)
	if err != nil {
		fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signalhandler.SetupHandler(context.Background())
	defer stop()

	switch command {
	case "analyze":
		err = handleAnalyzeCommand(ctx, args, params, dbPath)
	case "search":
		err = handleSearchCommand(ctx, args, params, dbPath)
	case "serve":
		err = handleServeCommand(ctx, params, dbPath)
	}
	if err != nil {
		stop()
		fatalf("Error: %v", err)
	}
}

// loadParams layers defaults, the optional YAML file, IMAGEDEDUP_* env
// variables and command line flags, then validates the result
func loadParams(args map[string]string) (config.AnalysisParams, error) {
	params := config.DefaultParams()
	if path, ok := args["config"]; ok && path != "" {
		p, err := config.LoadFile(path)
		if err != nil {
			return params, err
		}
		params = p
	}
	if err := config.ApplyEnv(&params); err != nil {
		return params, err
	}
	if err := utils.ApplyArguments(&params, args); err != nil {
		return params, err
	}
	return params, params.Validate()
}

// openCache initializes the signature database with retry logic
func openCache(dbPath string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		db, err = database.InitDatabase(dbPath)
		if err == nil {
			return db, nil
		}
		if i < maxRetries-1 {
			logging.LogWarning("Error initializing database (attempt %d/%d): %v - retrying...", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	return nil, fmt.Errorf("error initializing database after %d attempts: %w", maxRetries, err)
}

func handleAnalyzeCommand(ctx context.Context, args map[string]string, params config.AnalysisParams, dbPath string) error {
	folderPath := args["folder"]
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("cannot access folder path %s: %w", folderPath, err)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	// Report goes to stdout unless --output is given; progress then moves to stderr
	var out io.Writer = os.Stdout
	var progressOut io.Writer = os.Stderr
	if path, ok := args["output"]; ok && path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
		progressOut = os.Stdout
	}

	opts := analyzer.Options{Params: params}
	var db *sql.DB
	if _, noCache := args["no-cache"]; !noCache {
		db, err = openCache(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Cache = database.NewCache(db)
	}

	src := scanner.NewFileSource(folderPath, params.RecursiveScan)
	scanner.PrintStartupInfo(progressOut, folderPath, scanner.CountFiles(ctx, src), params.Combinations())

	tracker := scanner.NewProgressTracker(progressOut)
	opts.Progress = tracker.Observe

	a, err := analyzer.New(opts)
	if err != nil {
		tracker.Stop()
		return err
	}
	logging.LogInfo("Using %s hash provider", a.Provider())

	result, err := a.Run(ctx, src)
	tracker.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if err := writeReport(out, args["format"], result); err != nil {
		return fmt.Errorf("cannot write report: %w", err)
	}
	scanner.PrintCompletionStats(progressOut, result.Summary)

	if db != nil {
		if stats, err := database.GetScanStats(db); err == nil {
			fmt.Fprintf(progressOut, "\nCache %s:\n", dbPath)
			fmt.Fprintf(progressOut, "- Total images cached: %d\n", stats.TotalImages)
			fmt.Fprintf(progressOut, "- Total errors: %d\n", stats.ErrorCount)
			fmt.Fprintf(progressOut, "- Unique content hashes: %d\n", stats.UniqueHashes)
		}
	}
	return nil
}

func writeReport(w io.Writer, format string, r *types.Report) error {
	switch format {
	case "json":
		return report.WriteJSON(w, r)
	case "csv":
		return report.WriteCSV(w, r)
	case "", "text":
		return report.WriteText(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func handleSearchCommand(ctx context.Context, args map[string]string, params config.AnalysisParams, dbPath string) error {
	queryPath := args["image"]
	if _, err := os.Stat(queryPath); err != nil {
		return fmt.Errorf("query image %s: %w", queryPath, err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database does not exist: %s. Run analyze command first", dbPath)
	}

	startTime := time.Now()

	db, err := database.OpenDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer db.Close()

	a, err := analyzer.New(analyzer.Options{Params: params})
	if err != nil {
		return err
	}

	candidates, err := database.LoadAllRecords(db, a.Fingerprint())
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("No cached signatures match the current parameters. Run analyze with the same settings first.")
		return nil
	}

	fmt.Printf("Searching %d cached images for matches...\n", len(candidates))
	hits, err := a.Search(ctx, queryPath, candidates)
	if err != nil {
		return err
	}

	fmt.Println("\nTop Matches:")
	limit := 5
	if len(hits) == 0 {
		fmt.Println("No matches found.")
	}
	for i := 0; i < limit && i < len(hits); i++ {
		fmt.Printf("%d. Image: %s\n", i+1, hits[i].Path)
		fmt.Printf("   Reason: %s\n", hits[i].Reason)
		for _, d := range hits[i].Result.Distances {
			fmt.Printf("   %s distance: %d (threshold %d)\n", d.Algorithm.DisplayName(), d.Distance, d.Threshold)
		}
	}

	fmt.Printf("\nTotal search time: %v\n", time.Since(startTime))
	return nil
}

func handleServeCommand(ctx context.Context, params config.AnalysisParams, dbPath string) error {
	cfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		return err
	}

	db, err := openCache(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	cache := database.NewCache(db)

	factory := func(p config.AnalysisParams) (*analyzer.Analyzer, error) {
		return analyzer.New(analyzer.Options{Params: p, Cache: cache})
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           transport.NewHandler(params, factory, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogInfo("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.LogInfo("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func fatalf(format string, args ...interface{}) {
	logging.DebugLog(format, args...)
	logging.CloseLogger()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
