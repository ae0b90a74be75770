package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	hlog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"cv-agent-go/internal/access"
	"cv-agent-go/internal/agent"
	"cv-agent-go/internal/api/handler"
	"cv-agent-go/internal/api/router"
	"cv-agent-go/internal/config"
	"cv-agent-go/internal/docintel"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/processor"
	"cv-agent-go/internal/ratelimit"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/tracing"
)

var (
	serviceName    = "cv-agent-go"
	serviceVersion = "1.0.0"
)

// @title           CV Agent API
// @version         1.0
// @description     简历分析服务
// @BasePath        /api/v1
func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	initLogger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置文件失败")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, serviceName, serviceVersion, &cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	logger.Info().Msg("存储服务初始化成功")

	analysisProcessor, err := buildProcessor(ctx, cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化分析流水线失败")
	}

	startConsumers(cfg, storageManager, analysisProcessor)

	analysisHandler := handler.NewAnalysisHandler(
		cfg,
		storageManager.MySQL,
		storageManager.Redis,
		storageManager.MinIO,
		storageManager.RabbitMQ,
	)
	h := router.NewServer(cfg, analysisHandler)

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("链路追踪关闭失败")
	}

	logger.Info().Msg("优雅退出完成")
}

// buildProcessor 组装提取链与分析流水线的全部依赖
func buildProcessor(ctx context.Context, cfg *config.Config, storageManager *storage.Storage) (*processor.AnalysisProcessor, error) {
	fetcher := parser.NewRemoteFetcher(
		parser.WithFetchTimeout(time.Duration(cfg.Fetcher.TimeoutSeconds)*time.Second),
		parser.WithMaxAttempts(cfg.Fetcher.MaxAttempts),
		parser.WithBackoffBase(time.Duration(cfg.Fetcher.BackoffBaseSeconds)*time.Second),
	)

	pdfExtractor, err := parser.NewPDFTextExtractor(ctx)
	if err != nil {
		return nil, err
	}
	docxExtractor := parser.NewDocxTextExtractor()

	diagnostics := access.NewDiagnostics(storageManager.MinIO, fetcher)

	adapterOptions := []docintel.AdapterOption{
		docintel.WithAccessResolver(diagnostics),
		docintel.WithFetcher(fetcher),
		docintel.WithPDFExtractor(pdfExtractor),
		docintel.WithDocxExtractor(docxExtractor),
	}
	if cfg.DocIntel.Endpoint != "" && cfg.DocIntel.APIKey != "" {
		client, err := docintel.NewClientFromConfig(&cfg.DocIntel)
		if err != nil {
			return nil, err
		}
		adapterOptions = append(adapterOptions, docintel.WithService(client))
	} else {
		logger.Warn().Msg("文档理解服务未配置，仅使用二进制提取回退链")
	}
	adapter := docintel.NewAdapter(adapterOptions...)

	chatModel, err := agent.NewOpenAIChatModel(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.APIURL,
		agent.WithTemperature(cfg.OpenAI.Temperature),
		agent.WithMaxTokens(cfg.OpenAI.MaxTokens),
		agent.WithHTTPTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		return nil, err
	}

	var llmModel model.BaseChatModel = chatModel
	if cfg.OpenAI.QPM > 0 {
		llmModel = ratelimit.NewRateLimitedChatModel(chatModel, cfg.OpenAI.QPM)
		logger.Info().Int("qpm", cfg.OpenAI.QPM).Msg("模型调用已启用限流")
	}

	return processor.NewAnalysisProcessor(
		cfg,
		adapter,
		llmModel,
		storageManager.MySQL,
		storageManager.Redis,
		storageManager.MinIO,
	), nil
}

// startConsumers 启动分析任务消费者
func startConsumers(cfg *config.Config, storageManager *storage.Storage, analysisProcessor *processor.AnalysisProcessor) {
	workers := cfg.RabbitMQ.ConsumerWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		_, err := storageManager.RabbitMQ.StartConsumer(
			cfg.RabbitMQ.AnalysisQueue,
			cfg.RabbitMQ.PrefetchCount,
			analysisProcessor.HandleMessage,
		)
		if err != nil {
			logger.Fatal().Err(err).Int("worker", i).Msg("启动分析消费者失败")
		}
	}
	logger.Info().Int("workers", workers).Str("queue", cfg.RabbitMQ.AnalysisQueue).Msg("分析消费者已启动")
}

// initLogger 初始化日志系统，Hertz框架日志统一走zerolog
func initLogger() {
	isProduction := os.Getenv("ENV") == "production"

	logConfig := logger.Config{
		Level:        "debug",
		Format:       "pretty",
		TimeFormat:   time.RFC3339,
		ReportCaller: true,
	}
	if cfg, err := config.LoadConfig(""); err == nil && cfg != nil && cfg.Logger.Level != "" {
		logConfig.Level = cfg.Logger.Level
		logConfig.Format = cfg.Logger.Format
		logConfig.TimeFormat = cfg.Logger.TimeFormat
		logConfig.ReportCaller = cfg.Logger.ReportCaller
	} else if isProduction {
		logConfig.Level = "info"
		logConfig.Format = "json"
		logConfig.ReportCaller = false
	}
	logger.Init(logConfig)

	logger.Logger = logger.Logger.With().
		Str("app", serviceName).
		Str("version", serviceVersion).
		Logger()

	hlog.SetLogger(hertzzerolog.From(logger.Logger))
}
