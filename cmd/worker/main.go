package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campustrack/internal/attendance"
	"campustrack/internal/config"
	"campustrack/internal/queue"
	"campustrack/internal/store"
)

// Worker consumes appended attendance events, writes an audit log line for
// each, and keeps device last-seen timestamps current. Everything here is
// best effort and outside the request path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	ledger := attendance.NewPostgresLedger(db.Client)
	devices := attendance.NewPostgresDevices(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for attendance events...")
	for msg := range messages {
		if msg.Type != "attendance" {
			continue
		}

		evt, err := ledger.GetEvent(ctx, msg.Body)
		if err != nil {
			log.Printf("fetch event %s failed: %v", msg.Body, err)
			continue
		}

		if evt.Verified {
			log.Printf("audit: %s %s at %s (event %s)", evt.RFIDTag, evt.Action, evt.Location, evt.ID)
		} else {
			log.Printf("audit: REJECTED %s at %s, reason %s (event %s)", evt.RFIDTag, evt.Location, evt.FailureReason, evt.ID)
		}

		if evt.DeviceID != "" && evt.DeviceID != "WEB_CLIENT" {
			if err := devices.Touch(ctx, evt.DeviceID, time.Now()); err != nil {
				log.Printf("device touch failed for %s: %v", evt.DeviceID, err)
			}
		}
	}

	log.Println("worker stopped")
}
