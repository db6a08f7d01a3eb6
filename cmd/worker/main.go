package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/851-labs/async-job-processor-redis/internal/broker"
	"github.com/851-labs/async-job-processor-redis/internal/config"
	"github.com/851-labs/async-job-processor-redis/internal/handlers"
	"github.com/851-labs/async-job-processor-redis/internal/periodic"
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

	mux := handlers.NewMux()
	mux.Handle("echo", handlers.Echo(log.Logger))

	srv := broker.NewServer(mux, rdb, broker.Options{
		Prefix:      cfg.Prefix,
		Resolution:  cfg.Resolution,
		Delay:       cfg.Delay,
		Factor:      cfg.Factor,
		MaxInFlight: cfg.MaxInFlight,
		Logger:      log.Logger,
	})
	srv.Start()

	sched := periodic.New(srv, log.Logger)
	for _, entry := range cfg.Schedules {
		entry := entry
		if err := sched.Add(entry.Name, entry.Spec, func() any {
			job := make(map[string]any, len(entry.Job))
			for k, v := range entry.Job {
				job[k] = v
			}
			return job
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", entry.Name).Msg("register schedule")
		}
	}
	sched.Start()

	log.Info().Str("worker", srv.WorkerID()).Msg("worker running")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	sched.Stop()
	srv.Stop()
}
