package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-notetaking-editor/internal/bootstrap"
	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/server"
	"ai-notetaking-editor/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewMockAPIContainer(cfg)
	defer container.Close()

	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, tracer.ServiceName+"-mockgateway", container.Logger)
	defer shutdownTracer(context.Background())

	// 3. Start Background Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if container.LinkRecorder != nil {
		if err := container.LinkRecorder.Consume(ctx); err != nil {
			log.Printf("[WARN] Accepted links will not be recorded: %v", err)
		}
	}

	// 4. Initialize Server
	srv := server.New(cfg, container.GatewayController)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down mock gateway...")
		cancel()
		if err := srv.Shutdown(); err != nil {
			log.Printf("[WARN] Shutdown: %v", err)
		}
	}()

	// 5. Run Server
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
