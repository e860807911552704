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

	"loqui.chat/assistant-service/internal/api"
	"loqui.chat/assistant-service/internal/config"
	"loqui.chat/assistant-service/internal/core"
	"loqui.chat/assistant-service/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for loading seed data
	seedFileFlag := flag.String("seed", "", "Load seed data from a JSON fixture and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Handle seed loading if flag is set
	if *seedFileFlag != "" {
		log.Printf("Loading seed data from %s...", *seedFileFlag)
		numSeeded, err := dbStore.SeedFromFile(*seedFileFlag)
		if err != nil {
			log.Fatalf("Seed loading failed: %v", err)
		}
		log.Printf("Seed loading complete. Inserted %d rows. Exiting.", numSeeded)
		os.Exit(0)
	}

	// Initialize LLM service
	llmService, err := core.NewLLMService(config.AppConfig.GeminiAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize LLM service: %v", err)
	}
	defer llmService.Close()

	// Initialize handler services
	backfillService := core.NewBackfillService(dbStore, llmService)
	botService := core.NewBotService(dbStore, llmService, llmService, config.AppConfig.BotUserID)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(backfillService, botService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,  // Adjusted for potentially slower LLM handshakes
		WriteTimeout: 120 * time.Second, // A full backfill pass embeds items one at a time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received
	log.Println("Shutting down server...")

	// Give active invocations time to finish before forcing exit.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
