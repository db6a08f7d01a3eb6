package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/851-labs/async-job-processor-redis/internal/api"
	"github.com/851-labs/async-job-processor-redis/internal/broker"
	"github.com/851-labs/async-job-processor-redis/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}

	// Submission-only server: never started, so it runs no loops and
	// processes no jobs.
	srv := broker.NewServer(nil, rdb, broker.Options{
		Prefix: cfg.Prefix,
		Logger: log.Logger,
	})

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: api.NewRouter(srv, rdb)}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}
