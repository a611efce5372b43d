package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/webuild-community/spacebot/internal/api"
	"github.com/webuild-community/spacebot/internal/config"
	"github.com/webuild-community/spacebot/internal/room"
	"github.com/webuild-community/spacebot/internal/store"
	"github.com/webuild-community/spacebot/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	events := telemetry.NewEventLog()
	if err := events.Start(getEnvWithDefault("EVENT_LOG_PATH", "events.jsonl")); err != nil {
		log.Printf("telemetry: event log disabled: %v", err)
	}
	defer events.Stop()

	var adapter store.Adapter = store.NoopAdapter{}
	if cfg.RedisURI != "" {
		redisAdapter, err := store.NewRedisAdapter(cfg.RedisURI)
		if err != nil {
			log.Printf("store: redis unavailable, falling back to no-op adapter: %v", err)
		} else {
			adapter = redisAdapter
			log.Printf("store: using redis at %s", cfg.RedisURI)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := room.NewRegistry(ctx, cfg.ToArenaConfig(), adapter, events)

	// The default room is a dev-mode (unbounded) room so GET /reset and a
	// bare client connection always have somewhere to land.
	defaultRoom, err := registry.CreateRoom("default", 0, 0)
	if err != nil {
		log.Fatalf("room: failed to create default room: %v", err)
	}
	log.Printf("room: default room token=%s", defaultRoom.Token)

	server := api.NewServer(registry, adapter, cfg, defaultRoom.Token)

	go func() {
		addr := ":" + strconv.Itoa(cfg.ServerPort)
		log.Printf("api: listening on %s (dev_mode=%v)", addr, cfg.DevMode)
		if err := server.Start(addr); err != nil {
			log.Printf("api: server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("api: shutdown error: %v", err)
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
