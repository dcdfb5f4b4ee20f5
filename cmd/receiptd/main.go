package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.uber.org/zap"

	"github.com/opsledger/receiptd/internal/enhance"
	"github.com/opsledger/receiptd/internal/export"
	"github.com/opsledger/receiptd/internal/lexicon"
	"github.com/opsledger/receiptd/internal/media"
	"github.com/opsledger/receiptd/internal/ocr"
	"github.com/opsledger/receiptd/internal/pipeline"
	"github.com/opsledger/receiptd/internal/ratelimit"
)

var supportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
	".heic": true, ".heif": true, ".pdf": true,
}

func main() {
	fs := ff.NewFlagSet("receiptd")
	var (
		inputDir    = fs.StringLong("input", "./receipts", "Directory of receipt images to process")
		outputPath  = fs.StringLong("output", "receipts.csv", "Path of the CSV export to write")
		lexiconPath = fs.StringLong("lexicon", "", "Optional YAML lexicon file (built-in defaults when empty)")

		ocrEndpoint = fs.StringLong("ocr-endpoint", "", "Document-analysis service endpoint (or RECEIPTD_OCR_ENDPOINT)")
		ocrKey      = fs.StringLong("ocr-key", "", "Document-analysis service API key (or RECEIPTD_OCR_KEY)")
		ocrModel    = fs.StringLong("ocr-model", "prebuilt-receipt", "Document-analysis model identifier")
		ocrInterval = fs.DurationLong("ocr-interval", 500*time.Millisecond, "Minimum spacing between OCR calls")

		aiKey      = fs.StringLong("ai-key", "", "Generative-model API key; empty disables the fallback (or RECEIPTD_AI_KEY)")
		aiModel    = fs.StringLong("ai-model", "", "Generative model name (library default when empty)")
		aiInterval = fs.DurationLong("ai-interval", time.Second, "Minimum spacing between fallback calls")
		threshold  = fs.Float64Long("enhance-threshold", 0, "Heuristic confidence below which the fallback runs")

		emailKey  = fs.StringLong("email-key", "", "Transactional email API key; empty skips email (or RECEIPTD_EMAIL_KEY)")
		emailFrom = fs.StringLong("email-from", "receipts@opsledger.dev", "Sender address for the export email")
		emailTo   = fs.StringLong("email-to", "", "Recipient address for the export email")

		workers = fs.IntLong("workers", 4, "Concurrent receipt workers")
		debug   = fs.BoolLong("debug", "Enable debug logging")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPTD"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *ocrEndpoint == "" || *ocrKey == "" {
		logger.Fatal("document-analysis endpoint and key are required",
			zap.String("hint", "set --ocr-endpoint/--ocr-key or RECEIPTD_OCR_ENDPOINT/RECEIPTD_OCR_KEY"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, runConfig{
		inputDir:    *inputDir,
		outputPath:  *outputPath,
		lexiconPath: *lexiconPath,
		ocrEndpoint: *ocrEndpoint,
		ocrKey:      *ocrKey,
		ocrModel:    *ocrModel,
		ocrInterval: *ocrInterval,
		aiKey:       *aiKey,
		aiModel:     *aiModel,
		aiInterval:  *aiInterval,
		threshold:   *threshold,
		emailKey:    *emailKey,
		emailFrom:   *emailFrom,
		emailTo:     *emailTo,
		workers:     *workers,
	}); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

type runConfig struct {
	inputDir    string
	outputPath  string
	lexiconPath string
	ocrEndpoint string
	ocrKey      string
	ocrModel    string
	ocrInterval time.Duration
	aiKey       string
	aiModel     string
	aiInterval  time.Duration
	threshold   float64
	emailKey    string
	emailFrom   string
	emailTo     string
	workers     int
}

func run(ctx context.Context, logger *zap.Logger, cfg runConfig) error {
	var store lexicon.Store = lexicon.DefaultStore()
	if cfg.lexiconPath != "" {
		fileStore, err := lexicon.NewFileStore(cfg.lexiconPath)
		if err != nil {
			return fmt.Errorf("loading lexicon file: %w", err)
		}
		store = fileStore
	}
	lex, err := lexicon.Load(ctx, store)
	if err != nil {
		return fmt.Errorf("loading lexicon: %w", err)
	}

	var enhancer pipeline.Enhancer
	if cfg.aiKey != "" {
		enhancer = enhance.New(enhance.Config{
			APIKey: cfg.aiKey,
			Model:  cfg.aiModel,
			Logger: logger,
		})
	} else {
		logger.Info("no generative-model key configured, fallback disabled")
	}

	processor := pipeline.NewProcessor(
		pipeline.Config{
			ModelID:          cfg.ocrModel,
			EnhanceThreshold: cfg.threshold,
			Logger:           logger,
		},
		lex,
		media.NewNormalizer(logger),
		ocr.NewClient(cfg.ocrEndpoint, cfg.ocrKey, logger),
		enhancer,
		ratelimit.NewInterval(cfg.ocrInterval),
		ratelimit.NewInterval(cfg.aiInterval),
	)

	inputs, err := collectInputs(cfg.inputDir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		logger.Warn("no receipt images found", zap.String("dir", cfg.inputDir))
		return nil
	}
	logger.Info("processing receipts",
		zap.Int("count", len(inputs)),
		zap.String("dir", cfg.inputDir),
		zap.Int("workers", cfg.workers))

	batch := pipeline.NewBatch(processor, cfg.workers, logger)
	outcomes, summary := batch.Run(ctx, inputs)
	if err := ctx.Err(); err != nil {
		return err
	}

	processedAt := time.Now().UTC()
	rows := pipeline.Rows(outcomes, processedAt)

	out, err := os.Create(cfg.outputPath)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := export.WriteCSV(out, rows); err != nil {
		out.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}

	logger.Info("export written",
		zap.String("path", cfg.outputPath),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("enhanced", summary.Enhanced))

	if cfg.emailKey != "" && cfg.emailTo != "" {
		sendExport(ctx, logger, cfg, processedAt, summary)
	}
	return nil
}

// sendExport emails the written CSV. Delivery failures are logged and
// absorbed; the export on disk is the source of truth.
func sendExport(ctx context.Context, logger *zap.Logger, cfg runConfig, processedAt time.Time, summary pipeline.Summary) {
	data, err := os.ReadFile(cfg.outputPath)
	if err != nil {
		logger.Warn("reading export for email", zap.Error(err))
		return
	}

	dispatcher := export.NewEmailDispatcher(export.EmailConfig{
		APIKey: cfg.emailKey,
		From:   cfg.emailFrom,
		Logger: logger,
	})
	subject := fmt.Sprintf("Receipt export %s", processedAt.Format("2006-01-02"))
	body := fmt.Sprintf("<p>%d receipts processed, %d failed, %d enhanced.</p>",
		summary.Processed, summary.Failed, summary.Enhanced)
	name := filepath.Base(cfg.outputPath)

	if err := dispatcher.Send(ctx, cfg.emailTo, subject, body, name, data); err != nil {
		logger.Warn("export email not delivered", zap.Error(err))
		return
	}
	logger.Info("export emailed", zap.String("to", cfg.emailTo))
}

func collectInputs(dir string) ([]pipeline.Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var inputs []pipeline.Input
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !supportedExtensions[ext] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		inputs = append(inputs, pipeline.Input{Filename: entry.Name(), Data: data})
	}
	return inputs, nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
