package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/config"
	"github.com/tallai/tallai/internal/export"
	"github.com/tallai/tallai/internal/extract"
	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/match"
	"github.com/tallai/tallai/internal/provision"
	"github.com/tallai/tallai/internal/reconcile"
	"github.com/tallai/tallai/internal/server"
	"github.com/tallai/tallai/internal/store"
	"github.com/tallai/tallai/internal/tally"
	"github.com/tallai/tallai/internal/voucher"
	"github.com/tallai/tallai/pkg/database"
	"github.com/tallai/tallai/pkg/utils"
)

func main() {
	// .env carries OPENAI_API_KEY and friends in development
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting TallAi reconciliation server",
		zap.Int("port", cfg.Server.Port),
		zap.String("tally_url", cfg.Tally.URL))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	uploadDir := "data/uploads"
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	tallyClient := tally.NewClient(tally.Config{
		URL:     cfg.Tally.URL,
		Company: cfg.Tally.Company,
		Timeout: cfg.Tally.Timeout,
	}, logger)

	// the gateway may come up later; the health endpoint keeps checking
	if company, err := tallyClient.ActiveCompany(context.Background()); err != nil {
		logger.Warn("Tally gateway not reachable at startup", zap.Error(err))
	} else {
		logger.Info("Connected to Tally gateway", zap.String("company", company))
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey)

	embedder := match.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, logger)
	matcher := match.NewMatcher(embedder, cfg.Matcher.MinSimilarity, logger)
	reconciler := reconcile.NewReconciler(tallyClient, matcher, logger)

	tol := invoice.Tolerance{
		Epsilon: cfg.Accounting.Epsilon,
		Digits:  cfg.Accounting.RoundDigits,
	}

	taxLedgers := make([]provision.NameGroup, 0, len(cfg.Voucher.TaxLedgers))
	for _, name := range cfg.Voucher.TaxLedgers {
		taxLedgers = append(taxLedgers, provision.NameGroup{Name: name, Group: cfg.Voucher.TaxGroup})
	}
	provisioner := provision.NewProvisioner(tallyClient, provision.SystemLedgers{
		Sales:    provision.NameGroup{Name: cfg.Voucher.SalesLedger, Group: cfg.Voucher.SalesGroup},
		Purchase: provision.NameGroup{Name: cfg.Voucher.PurchaseLedger, Group: cfg.Voucher.PurchaseGroup},
		Tax:      taxLedgers,
	}, logger)

	builder := voucher.NewBuilder(tallyClient, voucher.Ledgers{
		Sales:    cfg.Voucher.SalesLedger,
		Purchase: cfg.Voucher.PurchaseLedger,
		Tax:      cfg.Voucher.TaxLedgers,
	}, tol, logger)

	handlers := server.NewHandlers(
		store.NewStore(db, logger),
		extract.NewPDFReader(logger),
		extract.NewExtractor(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Temperature, logger),
		reconciler,
		provisioner,
		builder,
		export.NewWorkbookWriter(logger),
		tallyClient,
		tol,
		cfg.Tally.Company,
		uploadDir,
		logger,
	)

	srv := server.NewServer(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server exited")
}
