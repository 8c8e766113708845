package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/runbox/runbox"
	"github.com/runbox/runbox/server"
)

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	service := runbox.New(
		runbox.WithConfig(config),
		runbox.WithTracing("runbox", "1.0", os.Getenv("TRACE_FILE")),
	)
	ctx := context.Background()
	if err = service.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize workspace: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: server.New(service).Handler(),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("starting server on :%s (workspace %v)", port, config.WorkDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	service.Shutdown()
	log.Println("server stopped")
}

// loadConfig overlays environment variables on an optional CONFIG yaml file.
func loadConfig() (*runbox.Config, error) {
	var config *runbox.Config
	var err error
	if location := os.Getenv("CONFIG"); location != "" {
		if config, err = runbox.LoadConfig(location); err != nil {
			return nil, err
		}
	} else {
		config = runbox.DefaultConfig()
	}
	if workDir := os.Getenv("WORK_DIR"); workDir != "" {
		config.WorkDir = workDir
	}
	if username := os.Getenv("RUNBOX_USER"); username != "" {
		config.Username = username
	}
	if value := os.Getenv("JUPYTER_PORT"); value != "" {
		port, convErr := strconv.Atoi(value)
		if convErr != nil {
			return nil, convErr
		}
		config.KernelPort = port
	}
	if value := os.Getenv("LOCAL_RUNTIME_MODE"); value != "" {
		config.LocalMode, _ = strconv.ParseBool(value)
	}
	return config, config.Validate()
}
