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

	"swarm-coordinator/core"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := core.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := core.NewMetrics()
	registry := core.NewAgentRegistry()

	var source core.ReputationSource
	if cfg.RegistryURL != "" {
		source = core.NewHTTPReputationSource(cfg.RegistryURL)
		log.Printf("Using reputation registry at %s", cfg.RegistryURL)
	} else {
		log.Printf("REGISTRY_URL not set, selecting agents by connectivity only")
	}
	ranker := core.NewRanker(registry, source)

	intake := core.NewIntakeQueue(cfg.IntakeBuffer)
	sink := core.NewCompletionQueue(cfg.CompletionBuffer, metrics)
	coordinator := core.NewCoordinator(cfg, ranker, sink, intake, metrics)
	go coordinator.Run(ctx)

	// Stand-in for the downstream settlement consumer: drain and log the
	// completion and failure queues.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-sink.Completions():
				log.Printf("Quest %s complete, contributors: %v", evt.QuestID, evt.Contributors)
			case evt := <-sink.Failures():
				log.Printf("Quest %s failed: %s", evt.QuestID, evt.Reason)
			}
		}
	}()

	healthSrv, err := core.StartHealthServer(cfg.HealthPort)
	if err != nil {
		log.Fatalf("Failed to start health server: %v", err)
	}
	defer healthSrv.GracefulStop()

	gateway := core.NewGateway(registry, coordinator, metrics)
	api := core.NewAPIServer(intake, coordinator, registry, gateway, metrics)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: cors.Default().Handler(api),
	}

	go func() {
		log.Printf("Coordinator listening on :%d (agents: /ws, intake: /api/v1/quests)", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("Coordinator stopped")
	os.Exit(0)
}
