package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"nlpservice/analyzer"
	"nlpservice/archiver"
	"nlpservice/broker"
	"nlpservice/config"
	"nlpservice/logging"
	"nlpservice/metrics"
	"nlpservice/queue"
	"nlpservice/server"
	"nlpservice/store"
	"nlpservice/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	log.Info("starting", "service", config.ServiceName, "version", config.ServiceVersion)

	b, err := broker.Connect(ctx, broker.Config{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer b.Close()
	log.Info("connected to redis", "addr", cfg.RedisAddr())

	jobStore := store.New(b)
	taskQueue := queue.NewTaskQueue(b, cfg.QueueKey)
	results := queue.NewResultsPublisher(b, cfg.ResultsKey)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	features := analyzer.Features{
		NER:               cfg.EnableNER,
		Classification:    cfg.EnableClassification,
		KeyPhrases:        cfg.EnableKeyPhrases,
		Embeddings:        cfg.EnableEmbeddings,
		LanguageDetection: cfg.EnableLanguageDetection,
	}

	var detector *analyzer.LanguageDetector
	if cfg.EnableLanguageDetection {
		detector = analyzer.NewLanguageDetector()
	}

	modelClient := analyzer.NewModelClient(cfg.ModelServerURL, cfg.ModelName)
	textProcessor := analyzer.NewTextProcessor(modelClient, detector, features, cfg.ModelName, log)

	proc := worker.New(worker.Deps{
		Queue:    taskQueue,
		Store:    jobStore,
		Results:  results,
		Analyzer: textProcessor,
		Metrics:  m,
		Model:    cfg.ModelName,
		Log:      log,
	}, worker.Options{Count: cfg.WorkerCount})
	proc.Start()

	var arch *archiver.Archiver
	var sink *archiver.PostgresSink
	if cfg.ResultsDSN != "" {
		sink, err = archiver.NewPostgresSink(ctx, cfg.ResultsDSN)
		if err != nil {
			return err
		}
		arch = archiver.New(b, cfg.ResultsKey, sink, log, archiver.Options{})
		arch.Start()
	}

	srv := server.New(server.Deps{
		Config:   cfg,
		Log:      log,
		Broker:   b,
		Queue:    taskQueue,
		Results:  results,
		Store:    jobStore,
		Analyzer: textProcessor,
		Worker:   proc,
		Metrics:  m,
		Registry: registry,
		Features: features,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	// The grace period must outlast one blocking pop cycle.
	shutdownCtx, cancel := context.WithTimeout(ctx, 35*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := proc.Stop(shutdownCtx); err != nil {
		log.Error("worker shutdown", "error", err)
	}
	if arch != nil {
		if err := arch.Stop(shutdownCtx); err != nil {
			log.Error("archiver shutdown", "error", err)
		}
		sink.Close()
	}

	log.Info("shutdown complete")
	return nil
}
