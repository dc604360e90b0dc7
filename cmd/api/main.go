package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketplace/internal/config"
	"marketplace/internal/handler"
	"marketplace/internal/infra/db"
	"marketplace/internal/infra/logger"
	"marketplace/internal/infra/notify"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/server"
	"marketplace/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	//.envは任意（無ければ環境変数だけ）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init(cfg.LogLevel)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//在庫少通知の配信先（Redis未設定ならpublishしない）
	var publisher usecase.LowStockPublisher = notify.NopPublisher{}
	if cfg.RedisAddr != "" {
		rp := notify.NewRedisPublisher(notify.NewRedisClient(cfg.RedisAddr, cfg.RedisDB), cfg.RedisChannelPrefix)
		defer rp.Close()
		publisher = rp
	}

	//Usecase生成
	tx := infraRepo.NewTxManagerGorm(gormDB)
	notifications := usecase.NewNotificationUsecase(tx, usecase.SystemClock{}, publisher, log)
	inventory := usecase.NewInventoryUsecase(tx, notifications)
	orders := usecase.NewOrderUsecase(tx, inventory, cfg.OrderRetryAttempts, log)

	//Handler生成
	e := server.New(log, cfg.JWTSecret, gormDB, server.Handlers{
		Orders:      handler.NewOrderHandler(orders),
		AdminOrders: handler.NewAdminOrderHandler(orders),
		Vendor:      handler.NewVendorHandler(inventory, notifications),
		AuditLogs:   handler.NewAdminAuditHandler(usecase.NewAuditUsecase(tx)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("listening", slog.String("addr", cfg.Addr()), slog.String("db_driver", cfg.DBDriver))
	return server.Start(ctx, e, cfg.Addr())
}
