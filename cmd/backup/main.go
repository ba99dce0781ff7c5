package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tutormula/internal/config"
	"tutormula/internal/database"
	"tutormula/internal/logger"
	"tutormula/internal/logger/sl"
	"tutormula/internal/service"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	importInput := importCmd.String("input", "", "Input file path (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)
	ctx := context.Background()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		fatal(log, "failed to initialize database", err)
	}
	defer db.Close()

	applied, err := db.RunMigrations(ctx)
	if err != nil {
		fatal(log, "failed to run migrations", err)
	}
	if len(applied) > 0 {
		log.Info("migrations applied", slog.Any("files", applied))
	}

	backupService := service.NewBackupService(db, log)

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, log, backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, log, backupService, *importInput)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, log *slog.Logger, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(log, "failed to create output directory", err)
		}
	}

	log.Info("exporting database", slog.String("output", outputPath))
	if _, err := backupService.ExportFile(ctx, outputPath); err != nil {
		fatal(log, "export failed", err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		log.Info("export complete", slog.String("size", fmt.Sprintf("%.2f MB", float64(info.Size())/1024/1024)))
	}
}

func handleImport(ctx context.Context, log *slog.Logger, backupService *service.BackupService, inputPath string) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		fatal(log, "input file does not exist", err)
	}

	log.Info("importing database", slog.String("input", inputPath))
	backup, err := backupService.ImportFile(ctx, inputPath)
	if err != nil {
		fatal(log, "import failed", err)
	}
	log.Info("import complete",
		slog.Int("accounts", len(backup.Accounts)),
		slog.Int("student_profiles", len(backup.Students)),
		slog.Int("sessions", len(backup.Sessions)),
	)
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, sl.Err(err))
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Tutormula Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file")
	fmt.Println("  backup import [options]    Import database from JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required); the target database must be empty")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, pgx or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./tutormula.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  CONFIG_PATH      Optional YAML config file")
}
