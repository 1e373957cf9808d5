package notify

import (
	"context"
	"log"
	"time"
)

// sendTimeout is the max time allowed for a single async dispatch.
const sendTimeout = 5 * time.Second

// ShutdownDrainDuration is how long cmd/server waits after the HTTP server
// stops before closing the producer, so in-flight async dispatches have time
// to complete. Must be >= sendTimeout.
const ShutdownDrainDuration = sendTimeout

// DispatchAsync runs Send in a goroutine with a short timeout so the caller is
// not blocked. Use from the settlement path for fire-and-forget delivery;
// errors are logged.
//
// producer and msg may be nil; DispatchAsync returns immediately without
// starting a goroutine. The goroutine uses a fresh context with sendTimeout so
// request cancellation does not abort an in-flight dispatch.
func DispatchAsync(producer Producer, msg *Message) {
	if producer == nil || msg == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := producer.Send(sendCtx, msg); err != nil {
			log.Printf("notify: async dispatch failed: %v", err)
		}
	}()
}
