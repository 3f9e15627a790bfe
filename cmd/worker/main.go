package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presence/internal/attendance"
	"presence/internal/config"
	"presence/internal/queue"
	"presence/internal/store"
)

// statsTTL keeps dashboard tallies around long enough to cover a teaching
// day without accumulating stale sessions forever.
const statsTTL = 48 * time.Hour

// Worker consumes recorded-submission messages and maintains per-session
// status tallies in Redis for instructor dashboards. Advisory only: the
// attendance table stays the source of truth.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "presence:recorded")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "recorded" {
			continue
		}

		var evt attendance.RecordedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad recorded message: %v", err)
			continue
		}

		key := "presence:stats:" + evt.SessionToken
		if err := redisClient.Client.HIncrBy(ctx, key, string(evt.Status), 1).Err(); err != nil {
			log.Printf("stats update failed for %s: %v", evt.SessionToken, err)
			continue
		}
		_ = redisClient.Client.Expire(ctx, key, statsTTL).Err()
		log.Printf("session %s: +1 %s", evt.SessionToken, evt.Status)
	}

	log.Println("worker stopped")
}
