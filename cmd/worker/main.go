package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhammetmertkus/face-recognition-backend/internal/attendance"
	"github.com/muhammetmertkus/face-recognition-backend/internal/config"
	"github.com/muhammetmertkus/face-recognition-backend/internal/queue"
	"github.com/muhammetmertkus/face-recognition-backend/internal/store"
)

// Worker consumes session-committed events and appends emotion-history
// records for every matched student with an observed emotion.
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

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open data dir failed: %v", err)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(queue.NewRedisClient(cfg.RedisAddr), "attendance:sessions")
	}

	rec := attendance.NewRecorder(attendance.NewStoreRepo(db))

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if err := rec.HandleMessage(msg); err != nil {
			log.Printf("handle %s message failed: %v", msg.Type, err)
			continue
		}
		time.Sleep(10 * time.Millisecond) // Small delay between processing
	}

	log.Println("worker stopped")
}
