package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/chronos/internal/api/grpc/router"
	grpcServer "github.com/dtroode/chronos/internal/api/grpc/server"
	"github.com/dtroode/chronos/internal/config"
	"github.com/dtroode/chronos/internal/idp/gotrue"
	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
	"github.com/dtroode/chronos/internal/repository/postgres"
	"github.com/dtroode/chronos/internal/server"
	"github.com/dtroode/chronos/internal/service"
	"github.com/dtroode/chronos/internal/telemetry"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Fatal("failed to set up tracing", "error", err)
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	profileRepo := postgres.NewProfileRepository(db)
	timerLogRepo := postgres.NewTimerLogRepository(db)

	idp := gotrue.NewClient(cfg.IdP.URL, cfg.IdP.AnonKey, &http.Client{Timeout: cfg.IdP.Timeout}, logger)

	profiles := service.NewProfileResolver(profileRepo, logger)
	session := service.NewSessionController(idp, profiles, logger, cfg.Session.SafetyTimeout)
	flow := service.NewAuthFlow(idp, logger, cfg.IdP.RedirectURL, cfg.Flow.TickInterval)
	usage := service.NewUsageLogger(timerLogRepo, logger)

	term := newTerminal(flow, session, usage, logger, os.Stdout)
	session.Initialize(ctx)

	var wg sync.WaitGroup
	var bridge *grpcServer.GRPCServer
	if cfg.Bridge.Enabled {
		bridge = registerBridge(logger, session, cfg.Bridge.Token, fmt.Sprintf(":%s", cfg.Bridge.Port))
		sl := server.NewSecurityLayer(cfg.Bridge.EnableHTTPS, cfg.Bridge.CertFileName, cfg.Bridge.PrivateKeyFileName)

		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting session bridge on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start session bridge", "error", err)
			}
		}(bridge)
	}

	logAppVersion()

	if err := term.run(ctx, os.Stdin); err != nil {
		logger.Error("terminal input failed", "error", err)
	}
	stop()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	session.Teardown()
	flow.Close()

	if bridge != nil {
		if err := bridge.Stop(shutdownCtx); err != nil {
			logger.Error("error during bridge shutdown", "error", err, "address", bridge.Address())
		}
	}
	wg.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func registerBridge(
	logger *logger.Logger,
	session *service.SessionController,
	token string,
	addr string,
) *grpcServer.GRPCServer {
	r := router.New(session, token, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}
