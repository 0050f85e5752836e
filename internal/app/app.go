// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moriyama/linkdigest/internal/ai"
	"github.com/moriyama/linkdigest/internal/alert"
	"github.com/moriyama/linkdigest/internal/bot"
	"github.com/moriyama/linkdigest/internal/config"
	"github.com/moriyama/linkdigest/internal/database"
	"github.com/moriyama/linkdigest/internal/digest"
	"github.com/moriyama/linkdigest/internal/dispatcher"
	"github.com/moriyama/linkdigest/internal/extractor"
	"github.com/moriyama/linkdigest/internal/fetcher"
	"github.com/moriyama/linkdigest/internal/handler"
	"github.com/moriyama/linkdigest/internal/logger"
	"github.com/moriyama/linkdigest/internal/metrics"
	"github.com/moriyama/linkdigest/internal/model"
	"github.com/moriyama/linkdigest/internal/repository"
	"github.com/moriyama/linkdigest/internal/scheduler"
	"github.com/moriyama/linkdigest/internal/security"
	"github.com/moriyama/linkdigest/internal/settings"
	"github.com/moriyama/linkdigest/internal/summarizer"
	"github.com/moriyama/linkdigest/internal/validator"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("mock_mode", cfg.EnableMockData),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipeline はリンク収集パイプラインの構成済みコンポーネント一式。
type pipeline struct {
	db         *sql.DB
	registry   *prometheus.Registry
	collector  *metrics.Collector
	notifier   *alert.WebhookNotifier
	botClient  *bot.Client
	settings   *settings.Service
	dispatcher *dispatcher.Dispatcher
	aggregator *digest.Aggregator
}

// buildPipeline は全依存関係をワイヤリングする。
// 呼び出し側はdbのCloseとnotifierのStopに責任を持つ。
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	// 2. リポジトリの初期化
	linkRepo := repository.NewPostgresLinkRepo(db)
	summaryRepo := repository.NewPostgresSummaryRepo(db)
	digestRepo := repository.NewPostgresDigestRepo(db)
	tenantSettingRepo := repository.NewPostgresTenantSettingRepo(db)
	userSettingRepo := repository.NewPostgresUserSettingRepo(db)

	// 3. メトリクスとアラート
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	notifier := alert.NewWebhookNotifier(cfg.AlertWebhookURL, log)

	// 4. パイプラインコンポーネント
	guard := security.NewGuard()
	linkValidator := validator.New(guard, log, cfg.FetchTimeout)
	contentFetcher := fetcher.New(guard, log, cfg.FetchTimeout, nil)

	var gen ai.Generator
	if cfg.EnableMockData {
		gen = ai.NewMockGenerator()
	} else {
		gen = ai.NewClient(ai.Config{
			BaseURL:    cfg.AIBaseURL,
			Model:      cfg.AIModel,
			APIKey:     cfg.AIAPIKey,
			RatePerMin: cfg.AIRatePerMin,
			RateBurst:  cfg.AIRateBurst,
		}, log)
	}

	summarySvc := summarizer.New(contentFetcher, gen, collector, notifier, log, summarizer.Config{
		MaxRetries: cfg.SummaryMaxRetries,
		MockMode:   cfg.EnableMockData,
		TenantID:   cfg.DefaultTenantID,
	})

	// 5. ボットクライアントとメッセージ処理
	botClient := bot.NewClient(cfg.FeishuAppID, cfg.FeishuAppSecret, cfg.FeishuBaseURL, log)
	settingsSvc := settings.NewService(tenantSettingRepo, userSettingRepo, log)

	msgHandler := bot.NewMessageHandler(
		extractor.New(), linkValidator, summarySvc,
		linkRepo, summaryRepo, botClient, settingsSvc,
		log, cfg.DefaultTenantID,
	)

	disp := dispatcher.New(collector, log, cfg.DefaultTenantID)
	disp.AddFilter(dispatcher.NewBotSenderFilter())
	if len(cfg.AllowedChats) > 0 {
		disp.AddFilter(dispatcher.NewChatAllowListFilter(cfg.AllowedChats))
	}
	disp.RegisterHandler(model.MessageTypeText, msgHandler.HandleText)
	disp.RegisterHandler(model.MessageTypeImage, msgHandler.HandleImage)

	// 6. 日次ダイジェスト
	aggregator := digest.NewAggregator(
		linkRepo, summaryRepo, digestRepo, gen, botClient,
		collector, notifier, log,
		digest.Config{
			TenantID:   cfg.DefaultTenantID,
			ChatIDs:    digestChats(cfg),
			MaxRetries: cfg.DigestMaxRetries,
		},
	)

	return &pipeline{
		db:         db,
		registry:   registry,
		collector:  collector,
		notifier:   notifier,
		botClient:  botClient,
		settings:   settingsSvc,
		dispatcher: disp,
		aggregator: aggregator,
	}, nil
}

// digestChats はダイジェスト配信先チャットのリストを組み立てる。
// デフォルトチャットを先頭に置き、許可リストのチャットを重複なく続ける。
func digestChats(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	var chats []string

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		chats = append(chats, id)
	}

	add(cfg.FeishuDefaultChatID)
	for _, id := range cfg.AllowedChats {
		add(id)
	}
	return chats
}

// startDigestScheduler は日次ダイジェストジョブをスケジューラーに登録して開始する。
func startDigestScheduler(cfg *config.Config, aggregator *digest.Aggregator) (*scheduler.Scheduler, error) {
	sched := scheduler.New(slog.Default())
	hour, minute := cfg.DigestHourMinute()

	err := sched.ScheduleDaily(hour, minute, "daily_digest", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := aggregator.Run(ctx, time.Now()); err != nil {
			slog.Error("daily digest job failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}

// runServe はWebhookサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーと（有効な場合）日次ダイジェスト
// スケジューラーを起動する。SIGINTまたはSIGTERMでグレースフルシャットダウンする。
func runServe(cfg *config.Config) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.db.Close()
	defer p.notifier.Stop()

	if cfg.EnableDailyDigest {
		sched, err := startDigestScheduler(cfg, p.aggregator)
		if err != nil {
			return fmt.Errorf("failed to start digest scheduler: %w", err)
		}
		defer func() { <-sched.Stop().Done() }()
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Dispatcher:        p.dispatcher,
		VerificationToken: cfg.FeishuVerificationToken,
		SettingsService:   p.settings,
		TenantID:          cfg.DefaultTenantID,
		Gatherer:          p.registry,
		DB:                p.db,
		Logger:            slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("webhook server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down webhook server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("webhook server stopped gracefully")
	return nil
}

// runWorker はダイジェストスケジューラーのみで起動する。
// Webhookサーバーと分離してデプロイする構成向け。
func runWorker(cfg *config.Config) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.db.Close()
	defer p.notifier.Stop()

	sched, err := startDigestScheduler(cfg, p.aggregator)
	if err != nil {
		return fmt.Errorf("failed to start digest scheduler: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("worker starting",
		slog.String("digest_time", cfg.DigestTime),
	)

	<-stop
	slog.Info("shutting down worker...")
	<-sched.Stop().Done()

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
