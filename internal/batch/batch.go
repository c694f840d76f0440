// Package batch classifies one submission of uploaded leaf images.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/leafgrade/internal/history"
	"github.com/Brownie44l1/leafgrade/internal/metrics"
	"github.com/Brownie44l1/leafgrade/internal/preprocess"
)

// Rejection reasons.
const (
	ReasonTooSmall    = "too_small"
	ReasonUndecodable = "undecodable"
)

// Classifier maps a raw feature vector to a label. *model.Bundle satisfies it.
type Classifier interface {
	Classify(raw []float64) (string, error)
}

// Upload is one file from a submission.
type Upload struct {
	Filename string
	Data     []byte
}

// Item is an accepted, classified image.
type Item struct {
	Filename    string
	Label       string
	Image       image.Image
	ProcessedAt time.Time
}

// Rejection is an image skipped before prediction.
type Rejection struct {
	Filename string
	Reason   string
	Message  string
}

// Result is the outcome of one submission. Items and Rejected are each in
// upload order.
type Result struct {
	SubmissionID string
	Items        []Item
	Rejected     []Rejection
}

// Export renders one "filename: LABEL" line per accepted image.
func (r *Result) Export() string {
	lines := make([]string, len(r.Items))
	for i, it := range r.Items {
		lines[i] = ExportLine(it.Filename, it.Label)
	}
	return strings.Join(lines, "\n")
}

// ExportLine formats a single export line.
func ExportLine(filename, label string) string {
	return fmt.Sprintf("%s: %s", filename, strings.ToUpper(label))
}

// Records converts accepted items into history records.
func (r *Result) Records() []history.Record {
	out := make([]history.Record, len(r.Items))
	for i, it := range r.Items {
		out[i] = history.Record{File: it.Filename, Label: it.Label, Time: it.ProcessedAt}
	}
	return out
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers classifies up to n images of a submission concurrently.
// Output order does not depend on n.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithMetrics records prediction and rejection counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the processing timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner applies preprocessing and prediction to each image of a
// submission and appends the accepted ones to the history store.
type Runner struct {
	pre     *preprocess.Preprocessor
	clf     Classifier
	store   history.Store
	workers int
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Runner.
func New(pre *preprocess.Preprocessor, clf Classifier, store history.Store, opts ...Option) *Runner {
	r := &Runner{
		pre:     pre,
		clf:     clf,
		store:   store,
		workers: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type outcome struct {
	item      *Item
	rejection *Rejection
}

// Run classifies uploads. Undersized or undecodable images are rejected and
// skipped. A classifier failure aborts the submission. If only the history
// append fails, the full result is returned together with the error.
func (r *Runner) Run(ctx context.Context, uploads []Upload) (*Result, error) {
	res := &Result{SubmissionID: uuid.NewString()}

	outcomes, err := r.classifyAll(ctx, uploads)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		if o.rejection != nil {
			res.Rejected = append(res.Rejected, *o.rejection)
			continue
		}
		res.Items = append(res.Items, *o.item)
	}

	slog.Info("submission classified",
		slog.String("submission", res.SubmissionID),
		slog.Int("accepted", len(res.Items)),
		slog.Int("rejected", len(res.Rejected)),
	)

	if err := r.store.Append(ctx, res.Records()); err != nil {
		if r.metrics != nil {
			r.metrics.HistoryErrors.Inc()
		}
		return res, fmt.Errorf("append history: %w", err)
	}
	return res, nil
}

func (r *Runner) classifyAll(ctx context.Context, uploads []Upload) ([]outcome, error) {
	outcomes := make([]outcome, len(uploads))

	if r.workers <= 1 || len(uploads) <= 1 {
		for i, u := range uploads {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			o, err := r.classifyOne(u)
			if err != nil {
				return nil, err
			}
			outcomes[i] = o
		}
		return outcomes, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	jobs := make(chan int)
	for w := 0; w < min(r.workers, len(uploads)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o, err := r.classifyOne(uploads[i])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				outcomes[i] = o
			}
		}()
	}

feed:
	for i := range uploads {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *Runner) classifyOne(u Upload) (outcome, error) {
	img, _, err := image.Decode(bytes.NewReader(u.Data))
	if err != nil {
		return r.reject(u.Filename, ReasonUndecodable,
			fmt.Sprintf("Gambar %s tidak dapat dibaca. Format yang didukung: JPEG, PNG", u.Filename)), nil
	}

	features, err := r.pre.Features(img)
	if errors.Is(err, preprocess.ErrImageTooSmall) {
		b := img.Bounds()
		return r.reject(u.Filename, ReasonTooSmall,
			fmt.Sprintf("Gambar %s terlalu kecil (%dx%d).", u.Filename, b.Dx(), b.Dy())), nil
	}
	if err != nil {
		return outcome{}, fmt.Errorf("preprocess %s: %w", u.Filename, err)
	}

	label, err := r.clf.Classify(features)
	if err != nil {
		return outcome{}, fmt.Errorf("classify %s: %w", u.Filename, err)
	}
	if r.metrics != nil {
		r.metrics.Predictions.WithLabelValues(label).Inc()
	}

	return outcome{item: &Item{
		Filename:    u.Filename,
		Label:       label,
		Image:       img,
		ProcessedAt: r.now(),
	}}, nil
}

func (r *Runner) reject(filename, reason, message string) outcome {
	slog.Warn("image rejected",
		slog.String("file", filename),
		slog.String("reason", reason),
	)
	if r.metrics != nil {
		r.metrics.Rejections.WithLabelValues(reason).Inc()
	}
	return outcome{rejection: &Rejection{Filename: filename, Reason: reason, Message: message}}
}
