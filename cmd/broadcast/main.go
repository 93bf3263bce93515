package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xfarydz/rydstore-backend/internal/config"
	"github.com/xfarydz/rydstore-backend/internal/ws"
)

func main() {
	fmt.Println("Starting broadcast service...")

	cfg := loadConfig()

	// Initialize Redis subscriber
	fmt.Println("Connecting to Redis...")
	subscriber, err := ws.NewSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Printf("Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	defer subscriber.Close()
	fmt.Println("Connected to Redis")

	// Subscribe to bid and close events for every item
	ctx := context.Background()
	if err := subscriber.SubscribeToPattern(ctx, "bid_events:*"); err != nil {
		fmt.Printf("Failed to subscribe to Redis channels: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Subscribed to bid events")

	// Initialize WebSocket manager
	wsManager := ws.NewManager()
	go wsManager.Run()
	fmt.Println("WebSocket manager started")

	// Forward Redis Pub/Sub messages to WebSocket clients
	messageChan := make(chan *ws.Message, 256)

	go func() {
		fmt.Println("Listening for Redis Pub/Sub messages...")
		if err := subscriber.Listen(ctx, messageChan); err != nil {
			fmt.Printf("Redis listener error: %v\n", err)
		}
	}()

	go func() {
		for msg := range messageChan {
			wsManager.Broadcast(msg.ItemID, []byte(msg.Payload))
		}
	}()

	// Initialize HTTP server for WebSocket connections
	handler := ws.NewHandler(wsManager)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("Broadcast service listening on %s\n", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
	}

	fmt.Println("Server stopped gracefully")
}

// Config holds application configuration
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	config.Load()
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8081"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
	}
}
