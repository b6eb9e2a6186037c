package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/metrics"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
)

// Engine runs duplicate detection and resolution against one dataset. It
// assumes it is the only writer to the dataset while a call is running.
type Engine struct {
	ds     *db.Dataset
	views  *Materializer
	mode   GroupingMode
	logger *zap.Logger
}

func NewEngine(ds *db.Dataset, mode GroupingMode, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode == "" {
		mode = GroupStar
	}
	return &Engine{
		ds:     ds,
		views:  NewMaterializer(ds),
		mode:   mode,
		logger: logger.With(zap.String("dataset", ds.Name)),
	}
}

// Views exposes the engine's materializer.
func (e *Engine) Views() *Materializer { return e.views }

// FindApproximateDuplicates loads the similarity index stored under
// brainKey, flags near-duplicates with sel, groups them, and materializes
// the duplicate views. Fails with ErrConfiguration if the index was never
// computed.
func (e *Engine) FindApproximateDuplicates(ctx context.Context, brainKey string, sel similarity.Selector) (Summary, error) {
	_, span := otel.Tracer("dedup").Start(ctx, "dedup.FindApproximateDuplicates")
	defer span.End()
	span.SetAttributes(
		attribute.String("dataset", e.ds.Name),
		attribute.String("brain_key", brainKey),
		attribute.String("grouping", string(e.mode)),
	)
	start := time.Now()

	index, err := similarity.Load(e.ds, brainKey)
	if err != nil {
		if errors.Is(err, similarity.ErrNoIndex) {
			return Summary{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return Summary{}, err
	}
	if err := index.FindDuplicates(sel); err != nil {
		return Summary{}, fmt.Errorf("finding duplicates: %w", err)
	}

	nm := index.NeighborsMap()
	groups, err := Build(nm, e.mode)
	if err != nil {
		return Summary{}, err
	}
	summary, err := e.views.Materialize(nm.FlaggedIDs(), groups)
	if err != nil {
		return Summary{}, err
	}

	metrics.StageDuration.WithLabelValues("find_duplicates").Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("num_images_with_approx_dups", summary.ImagesWithDuplicates),
		attribute.Int("num_dups", summary.ExcessDuplicates),
	)
	e.logger.Info("found approximate duplicates",
		zap.String("brain_key", brainKey),
		zap.Float64("threshold", index.Threshold()),
		zap.Int("indexed", index.Len()),
		zap.Int("num_images_with_approx_dups", summary.ImagesWithDuplicates),
		zap.Int("num_approx_dup_groups", summary.DuplicateGroups),
		zap.Int("num_dups", summary.ExcessDuplicates),
	)
	return summary, nil
}

// RemoveAll applies the remove-all policy. Once deletion starts it runs to
// completion; ctx is only used for tracing.
func (e *Engine) RemoveAll(ctx context.Context) (*Resolution, error) {
	return e.resolve(ctx, PolicyRemoveAll, e.views.RemoveAll)
}

// KeepOnePerGroup applies the keep-one-per-group policy. Once deletion
// starts it runs to completion; ctx is only used for tracing.
func (e *Engine) KeepOnePerGroup(ctx context.Context) (*Resolution, error) {
	return e.resolve(ctx, PolicyKeepOne, e.views.KeepOnePerGroup)
}

func (e *Engine) resolve(ctx context.Context, policy string, fn func() (*Resolution, error)) (*Resolution, error) {
	_, span := otel.Tracer("dedup").Start(ctx, "dedup."+policy)
	defer span.End()
	start := time.Now()

	res, err := fn()
	if err != nil {
		return nil, err
	}

	metrics.DuplicatesDeletedTotal.WithLabelValues(policy).Add(float64(len(res.Deleted)))
	metrics.StageDuration.WithLabelValues(policy).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("deleted", len(res.Deleted)))
	e.logger.Info("resolved approximate duplicates",
		zap.String("policy", policy),
		zap.Int("kept", len(res.Kept)),
		zap.Int("deleted", len(res.Deleted)),
	)
	return res, nil
}
