package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// Push sends every registered metric to a Pushgateway. Batch commands have
// no scrape endpoint, so this runs once when a command finishes. An empty
// url is a no-op.
func Push(ctx context.Context, url, job string, logger *zap.Logger) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	logger.Debug("metrics pushed", zap.String("url", url), zap.String("job", job))
	return nil
}
