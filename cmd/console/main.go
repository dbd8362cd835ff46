package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agentflow-prototype/internal/audit"
	"github.com/xela07ax/agentflow-prototype/internal/console/handler"
	"github.com/xela07ax/agentflow-prototype/internal/console/server"
	"github.com/xela07ax/agentflow-prototype/internal/console/service"
	"github.com/xela07ax/agentflow-prototype/internal/infra"
	"github.com/xela07ax/agentflow-prototype/internal/infra/auth"
	"github.com/xela07ax/agentflow-prototype/internal/repository/postgres"
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

	// 2. Инициализация ресурсов
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL env) is required")
	}
	agentRepo := postgres.NewAgentRepo(cfg.Database.URL)
	auditRepo := postgres.NewAuditRepo(cfg.Database.URL)

	// Проверяем соединение с таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := agentRepo.Ping(ctx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	cancel()

	// 3. Ключи RS256: консоль подписывает токены, значит нужны оба
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to parse private key: %v", err)
	}
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		log.Fatalf("Failed to parse public key: %v", err)
	}
	validator := auth.NewBaseValidator(pubKey)

	// Хэшер должен совпадать с движком, иначе проверка цепочки бессмысленна
	var hasher audit.Hasher = audit.SHA256Hasher{}
	if cfg.Audit.Hasher == "sha3-256" {
		hasher = audit.SHA3Hasher{}
	}

	// 4. Инициализация слоев (Dependency Injection)
	authService := service.NewAuthService(agentRepo, privKey, cfg.Auth.TokenTTL)
	agentService := service.NewAgentService(rdb, agentRepo, validator, logger)
	auditService := service.NewAuditService(auditRepo, hasher)

	srvHandler := server.NewConsoleServer(
		cfg,
		logger,
		agentService,
		handler.NewAuthHandler(authService),
		handler.NewAgentHandler(agentService),
		handler.NewDashboardHandler(auditService),
		handler.NewAuditHandler(auditService),
	)

	// 5. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srvHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("console API started", zap.String("addr", srv.Addr))
	log.Fatal(srv.ListenAndServe())
}
