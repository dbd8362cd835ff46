package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/agentflow-prototype/internal/audit"
	"github.com/xela07ax/agentflow-prototype/internal/breaker"
	"github.com/xela07ax/agentflow-prototype/internal/bus"
	"github.com/xela07ax/agentflow-prototype/internal/catalog"
	"github.com/xela07ax/agentflow-prototype/internal/engine"
	"github.com/xela07ax/agentflow-prototype/internal/handoff"
	"github.com/xela07ax/agentflow-prototype/internal/infra"
	"github.com/xela07ax/agentflow-prototype/internal/infra/auth"
	"github.com/xela07ax/agentflow-prototype/internal/planner"
	"github.com/xela07ax/agentflow-prototype/internal/repository/postgres"
	"github.com/xela07ax/agentflow-prototype/internal/step"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL env) is required")
	}
	auditStorage := postgres.NewAuditRepo(cfg.Database.URL)
	agentRepo := postgres.NewAgentRepo(cfg.Database.URL)

	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := auditStorage.Ping(pingCtx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()

	// 3. Журнал аудита: hash-цепочка в памяти + асинхронная запись в базу
	var hasher audit.Hasher = audit.SHA256Hasher{}
	if cfg.Audit.Hasher == "sha3-256" {
		hasher = audit.SHA3Hasher{}
	}

	writer := audit.NewWriter(auditStorage, audit.WriterConfig{
		BufferSize:    cfg.Audit.BufferSize,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
	}, logger)
	writer.Start()

	trail := audit.NewTrail(hasher, logger,
		audit.WithSink(writer),
		audit.WithCheckpointEvery(cfg.Audit.CheckpointEvery),
		audit.WithCheckpointSink(func(cp audit.Checkpoint) {
			go func() {
				cpCtx, cpCancel := context.WithTimeout(appCtx, 3*time.Second)
				defer cpCancel()
				if err := auditStorage.WriteCheckpoint(cpCtx, cp); err != nil {
					logger.Warn("checkpoint persist failed", zap.Error(err))
				}
			}()
		}),
	)

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	writer.SetFillGauge(func(n int) { metrics.AuditBufferFill.Set(float64(n)) })

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.MetricsPort), mux))
	}()

	// 5. Control Plane (Менеджеры управления)
	suspendMgr := engine.NewSuspendManager(rdb, agentRepo, logger)
	if err := suspendMgr.Init(appCtx); err != nil {
		log.Fatalf("Failed to init suspend manager: %v", err)
	}
	go suspendMgr.StartListener(appCtx)

	sandboxMgr := engine.NewSandboxManager(rdb, agentRepo, logger)
	if err := sandboxMgr.Init(appCtx); err != nil {
		log.Fatalf("Failed to init sandbox manager: %v", err)
	}
	go sandboxMgr.StartListener(appCtx)

	// 6. Каталог действий: файл или встроенный медиа-конвейер
	var cat *catalog.Catalog
	if cfg.Engine.CatalogPath != "" {
		cat, err = catalog.Load(cfg.Engine.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load action catalog: %v", err)
		}
	} else {
		cat = catalog.Default()
	}
	if err := cat.Validate(); err != nil {
		log.Fatalf("Invalid action catalog: %v", err)
	}

	// 7. Сборка ядра
	eventBus := bus.New(cfg.Engine.BusHistory, logger)
	routing, derived := handoff.DefaultRules()

	orch := engine.NewOrchestrator(engine.Config{
		MaxReplans: cfg.Engine.MaxReplans,
		Invoker: engine.InvokerConfig{
			ActionTimeout: cfg.Engine.ActionTimeout,
			AgentRate:     rate.Limit(cfg.Engine.AgentRate),
			AgentBurst:    cfg.Engine.AgentBurst,
		},
	}, engine.Deps{
		Planner:     planner.New(cat, logger),
		Catalog:     cat,
		Coordinator: handoff.New(routing, derived, logger),
		Breakers: breaker.NewRegistry(breaker.Config{
			MaxFailures:      cfg.Engine.CBMaxFailures,
			ResetTimeout:     cfg.Engine.CBResetTimeout,
			SuccessThreshold: cfg.Engine.CBSuccessThreshold,
		}, logger),
		Runners: step.SimulatedRunners(catalog.LowConfidenceThreshold),
		Trail:   trail,
		Bus:     eventBus,
		Hooks:   engine.NewBusHooks(eventBus),
		Suspend: suspendMgr,
		Sandbox: sandboxMgr,
		Metrics: metrics,
		Logger:  logger,
	})

	// 8. HTTP Server
	// Цепочка защиты: Trace -> Auth (если настроен ключ) -> исполнение
	var endpoint http.Handler = http.HandlerFunc(orch.HandleRunRequest)
	if len(cfg.Auth.PublicKey) > 0 {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			log.Fatalf("Failed to parse auth public key: %v", err)
		}
		endpoint = auth.NewMiddleware(auth.NewBaseValidator(pubKey), logger)(endpoint)
	} else {
		logger.Warn("auth public key is not configured, /v1/runs is open")
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/runs", engine.TracingMiddleware(endpoint))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("pipeline engine started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("pipeline engine stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server Shutdown Failed: %+v", err)
	}
	cancel()

	// Дописываем хвост аудита в базу
	writer.Stop()
	logger.Info("pipeline engine exited properly")
}
