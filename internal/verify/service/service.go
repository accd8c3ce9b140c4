package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"garita/internal/verify"
	"garita/internal/verify/metrics"
	dErrors "garita/pkg/domain-errors"
	"garita/pkg/requestcontext"
)

// DefaultMonthlyQuota bounds OCR spend when no explicit quota is configured.
const DefaultMonthlyQuota = 1000

// maxImageBytes rejects uploads that no kiosk camera produces.
const maxImageBytes = 10 << 20

// TextExtractor turns an image into raw text. Implementations call an
// external OCR provider and are expected to honor the context deadline.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// UsageCounter tracks OCR calls per calendar month. Increment counts one
// call unless the month already reached the ceiling; a rejected call must
// leave the stored total untouched.
type UsageCounter interface {
	Increment(ctx context.Context, year int, month time.Month, ceiling int64) (used int64, ok bool, err error)
}

// Engine verifies checkpoint fields from typed text or captured images.
// Text verification is pure and free; image verification spends one unit
// of the monthly OCR quota per call.
type Engine struct {
	extractor TextExtractor
	usage     UsageCounter
	quota     int64
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMonthlyQuota overrides the default OCR quota.
func WithMonthlyQuota(quota int64) Option {
	return func(e *Engine) {
		e.quota = quota
	}
}

// WithMetrics attaches verification metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(extractor TextExtractor, usage UsageCounter, opts ...Option) *Engine {
	e := &Engine{
		extractor: extractor,
		usage:     usage,
		quota:     DefaultMonthlyQuota,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// VerifyText verifies a value the guard typed by hand.
func (e *Engine) VerifyText(ctx context.Context, kind verify.FieldKind, raw string) (verify.Result, error) {
	result, err := verify.Verify(kind, raw)
	if err != nil {
		return verify.Result{}, err
	}
	if e.metrics != nil {
		e.metrics.IncrementVerification(string(kind), result.Valid)
	}
	return result, nil
}

// VerifyImage runs OCR on a captured image and verifies the extracted text.
// The image is sniffed before any quota is spent; only JPEG and PNG reach
// the extractor. A rejected call spends nothing, so a month at the limit
// stays exactly at the limit no matter how often the kiosk retries.
func (e *Engine) VerifyImage(ctx context.Context, kind verify.FieldKind, image []byte) (verify.Result, error) {
	if _, err := verify.ParseFieldKind(string(kind)); err != nil {
		return verify.Result{}, err
	}
	if err := sniffImage(image); err != nil {
		return verify.Result{}, err
	}

	now := requestcontext.Now(ctx)
	used, ok, err := e.usage.Increment(ctx, now.Year(), now.Month(), e.quota)
	if err != nil {
		e.logger.ErrorContext(ctx, "ocr usage counter failed", "error", err)
		return verify.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "ocr usage counter unavailable")
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.IncrementQuotaRejection()
		}
		e.logger.WarnContext(ctx, "ocr quota exhausted",
			"used", used, "quota", e.quota, "period", fmt.Sprintf("%04d-%02d", now.Year(), now.Month()))
		return verify.Result{}, dErrors.Newf(dErrors.CodeQuotaExceeded,
			"monthly ocr quota of %d calls exhausted", e.quota)
	}

	start := time.Now()
	text, err := e.extractor.Extract(ctx, image)
	if e.metrics != nil {
		e.metrics.ObserveExtract(start)
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.IncrementExtraction("error")
		}
		if dErrors.HasCode(err, dErrors.CodeExtractionFailed) || dErrors.HasCode(err, dErrors.CodeTimeout) {
			return verify.Result{}, err
		}
		return verify.Result{}, dErrors.Wrap(err, dErrors.CodeExtractionFailed, "text extraction failed")
	}
	if e.metrics != nil {
		e.metrics.IncrementExtraction("ok")
	}

	result, err := verify.Verify(kind, text)
	if err != nil {
		return verify.Result{}, err
	}
	if e.metrics != nil {
		e.metrics.IncrementVerification(string(kind), result.Valid)
	}
	return result, nil
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

func sniffImage(image []byte) error {
	if len(image) == 0 {
		return dErrors.New(dErrors.CodeInvalidImage, "empty image")
	}
	if len(image) > maxImageBytes {
		return dErrors.Newf(dErrors.CodeInvalidImage, "image exceeds %d bytes", maxImageBytes)
	}
	if bytes.HasPrefix(image, jpegMagic) || bytes.HasPrefix(image, pngMagic) {
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidImage, "unsupported image format, expected jpeg or png")
}
