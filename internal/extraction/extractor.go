package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/expensely/pkg/logger"
	"github.com/charlesng35/expensely/pkg/metrics"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// Extractor runs a receipt through the model and normalises the reply.
type Extractor struct {
	model   Model
	limiter *Limiter
	now     func() time.Time
	log     *zap.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithLimiter installs a per-user rate limiter.
func WithLimiter(l *Limiter) Option {
	return func(e *Extractor) { e.limiter = l }
}

// WithClock overrides the clock used for date defaults.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExtractor constructs an Extractor around model.
func NewExtractor(model Model, opts ...Option) (*Extractor, error) {
	if model == nil {
		return nil, errors.New("extractor: model is required")
	}
	e := &Extractor{
		model: model,
		now:   time.Now,
		log:   logger.WithModule("extraction"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract validates dataURI, calls the model once and coerces the reply.
// Any model or payload failure yields ErrExtractionFailed with no partial result.
func (e *Extractor) Extract(ctx context.Context, userID, dataURI string) (*Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, _, err := ParseDataURI(dataURI); err != nil {
		return nil, InvalidImage(err)
	}
	if !e.limiter.Allow(userID) {
		metrics.ExtractionResults.WithLabelValues("rate_limited").Inc()
		return nil, apperrors.ErrRateLimit
	}

	started := time.Now()
	raw, err := e.model.Extract(ctx, dataURI)
	metrics.ExtractionLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, e.fail(userID, fmt.Errorf("model call: %w", err))
	}

	receipt, err := Coerce(raw, e.now())
	if err != nil {
		return nil, e.fail(userID, err)
	}

	metrics.ExtractionResults.WithLabelValues("success").Inc()
	return receipt, nil
}

func (e *Extractor) fail(userID string, err error) error {
	metrics.ExtractionResults.WithLabelValues("failure").Inc()
	e.log.Warn("receipt extraction failed", zap.String("user_id", userID), zap.Error(err))
	return apperrors.ErrExtractionFailed.WithInternal(err)
}

// InvalidImage converts an image validation failure into a client error.
func InvalidImage(err error) error {
	return apperrors.NewBadRequest(readableImageError(err))
}

func readableImageError(err error) string {
	switch {
	case errors.Is(err, ErrEmptyImage):
		return "receipt image is empty"
	case errors.Is(err, ErrImageTooLarge):
		return "receipt image is too large"
	case errors.Is(err, ErrUnsupportedImage):
		return "receipt must be an image"
	default:
		return "receipt must be an image data URI"
	}
}
