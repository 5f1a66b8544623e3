package consumer

import (
	"context"
	"sync"
	"time"

	"golang-market-ingestor/internal/analyzer/config"
	"golang-market-ingestor/internal/analyzer/service"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/utils"
)

// RedisConsumer manages the consumption of analysis triggers from the Redis
// stream.
type RedisConsumer struct {
	cfg             *config.Config
	analyzerService service.AnalyzerService
	logger          *logger.Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(cfg *config.Config, analyzerService service.AnalyzerService, log *logger.Logger) *RedisConsumer {
	return &RedisConsumer{
		cfg:             cfg,
		analyzerService: analyzerService,
		logger:          log,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the consumer's trigger processing loop.
func (c *RedisConsumer) Start(ctx context.Context) error {
	if err := c.analyzerService.EnsureGroup(ctx); err != nil {
		return err
	}

	timeout := c.cfg.Analyzer.StreamReadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	c.logger.Info("Redis consumer started")
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				readCtx, cancel := context.WithTimeout(ctx, timeout)
				c.analyzerService.ProcessTrigger(readCtx)
				cancel()
			}
		}
	})
	return nil
}

// Stop signals the consumer to stop and waits for in-flight work.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}
