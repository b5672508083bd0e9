package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"interview-orchestrator/internal/bot"
	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/dispatch"
	"interview-orchestrator/internal/leader"
	"interview-orchestrator/internal/queue"
	"interview-orchestrator/internal/storage"
	"interview-orchestrator/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	instanceID := os.Getenv("BOT_INSTANCE_ID")
	if instanceID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			instanceID = hostname
		} else {
			instanceID = fmt.Sprintf("bot-%d", os.Getpid())
		}
	}

	elector := leader.NewElector(st, cfg.LeaderLockKey, instanceID, cfg.LeaderTTL, cfg.LeaderHeartbeat)
	electorDone := make(chan struct{})
	go func() {
		defer close(electorDone)
		_ = elector.Run(ctx)
	}()

	q := queue.NewRedisQueue(cfg)
	emitter := dispatch.NewEmitter(cfg, st, q)

	voices, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init voice storage: %v", err)
	}

	b, err := bot.New(cfg, st, voices, emitter, elector)
	if err != nil {
		log.Fatalf("init telegram bot: %v", err)
	}

	log.Printf("bot instance %s starting (lock key %s)", instanceID, cfg.LeaderLockKey)
	if err := b.Run(ctx); err != nil {
		log.Printf("bot stopped: %v", err)
	}

	// Wait for the elector to release the lock so a follower can take over
	// immediately instead of waiting out the TTL.
	cancel()
	<-electorDone
}
