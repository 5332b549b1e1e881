package main

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/app"
	"github.com/vladislavdragonenkov/restaurant/internal/version"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}
	app.ConfigureLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(startupFields(cfg)).Info("запускаем restaurant-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("restaurant-service остановлен")
}

func startupFields(cfg app.Config) log.Fields {
	fields := log.Fields{
		"version":        version.GetVersion(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"cart_store":     cfg.CartStore,
	}
	if cfg.StorageDriver == app.StorageDriverPostgres {
		fields["postgres_dsn"] = redactDSN(cfg.PostgresDSN)
	}
	if cfg.KafkaBrokers != "" {
		fields["kafka_brokers"] = cfg.KafkaBrokers
	}
	return fields
}

// redactDSN скрывает пароль в DSN перед логированием.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
