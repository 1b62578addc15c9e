/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messagehub/internal/config"
	"messagehub/internal/dispatch"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/queue"
	"messagehub/internal/server"
	"messagehub/internal/storage"
	"messagehub/internal/submission"
	"messagehub/internal/worker"
)

func runHealthCheck(addr string) error {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/ping")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func main() {
	healthCheck := flag.Bool("health-check", false, "Run health check against a running instance")

	// config.Load registers its own flags and then parses the command line.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if *healthCheck {
		if err := runHealthCheck(cfg.Server.Address); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	logger := logging.NewLogger(cfg.Logging).WithComponent("main")

	repo, err := storage.NewRepository(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to create message repository: %v", err)
	}

	publisher, consumer, err := queue.NewTransport(cfg.Queue, logger)
	if err != nil {
		log.Fatalf("failed to create queue transport: %v", err)
	}

	metricsProvider := metrics.NewProvider()

	router := dispatch.NewRouter(cfg.Tenants, repo, logger, metricsProvider)
	submissionHandler := submission.NewHandler(repo, publisher, cfg.Tenants, logger, metricsProvider)
	deliveryWorker := worker.NewWorker(repo, consumer, router, cfg.Tenants, logger, metricsProvider)

	httpServer := server.New(cfg, repo, submissionHandler, metricsProvider, logger)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- deliveryWorker.Run(workerCtx)
	}()

	go func() {
		logger.Infof("starting message hub on %s", cfg.Server.Address)
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(err, "server forced to shutdown")
	}

	cancelWorker()
	<-workerDone

	if err := consumer.Close(); err != nil {
		logger.Errorf(err, "failed to close queue consumer")
	}
	if err := publisher.Close(); err != nil {
		logger.Errorf(err, "failed to close queue publisher")
	}
	if err := router.Close(); err != nil {
		logger.Errorf(err, "failed to close channel router")
	}
	if err := repo.Close(); err != nil {
		logger.Errorf(err, "failed to close message repository")
	}

	logger.Info("shutdown complete")
}
