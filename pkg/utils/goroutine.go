package utils

import (
	"context"
	"log"
	"runtime/debug"

	"golang-market-ingestor/pkg/logger"
)

// GoSafe runs fn in a goroutine and recovers panics so a single bad
// provider batch cannot take down the whole service.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// ShouldContinue reports whether the context is still live, logging when it is not.
func ShouldContinue(ctx context.Context, log *logger.Logger) bool {
	select {
	case <-ctx.Done():
		log.Info("context cancelled, stopping work", logger.ErrorField(ctx.Err()))
		return false
	default:
		return true
	}
}
