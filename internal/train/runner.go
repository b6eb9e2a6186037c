package train

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ravi0dubey/racoon-detection/internal/metrics"
	"github.com/ravi0dubey/racoon-detection/internal/proc"
)

// Runner invokes the yolo binary.
type Runner struct {
	Bin    string // yolo executable
	Task   string // segment or detect
	Out    io.Writer
	logger *zap.Logger
}

func NewRunner(task string, out io.Writer, logger *zap.Logger) *Runner {
	if task == "" {
		task = "segment"
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Bin: "yolo", Task: task, Out: out, logger: logger}
}

// Command returns the argument list for one yolo mode.
func (r *Runner) Command(mode string, args Args) []string {
	return append([]string{r.Task, mode}, args.Argv()...)
}

// BestWeights is where training leaves its best checkpoint.
func BestWeights(args Args) string {
	return filepath.Join(args.String("project"), args.String("name"), "weights", "best.pt")
}

// Train runs training, then validates the best checkpoint. When testSource
// is set the checkpoint also predicts on it.
func (r *Runner) Train(ctx context.Context, args Args, testSource string) error {
	ctx, span := otel.Tracer("train").Start(ctx, "train.Train")
	defer span.End()

	start := time.Now()
	if err := r.run(ctx, "train", args); err != nil {
		return err
	}
	metrics.StageDuration.WithLabelValues("train").Observe(time.Since(start).Seconds())

	best := BestWeights(args)
	r.logger.Info("training complete", zap.String("weights", best))

	val := Args{"model": best, "data": args["data"]}
	if err := r.run(ctx, "val", val); err != nil {
		return err
	}
	if testSource == "" {
		return nil
	}
	return r.run(ctx, "predict", Args{"model": best, "source": testSource, "project": args["project"]})
}

func (r *Runner) run(ctx context.Context, mode string, args Args) error {
	argv := r.Command(mode, args)
	r.logger.Info("running yolo", zap.String("mode", mode), zap.Strings("args", argv))
	if err := proc.Stream(ctx, r.Out, r.Bin, argv...); err != nil {
		return fmt.Errorf("yolo %s: %w", mode, err)
	}
	return nil
}
