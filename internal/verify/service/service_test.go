package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garita/internal/verify"
	dErrors "garita/pkg/domain-errors"
)

type stubExtractor struct {
	text  string
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubCounter struct {
	used  int64
	err   error
	calls int
}

func (s *stubCounter) Increment(_ context.Context, _ int, _ time.Month, ceiling int64) (int64, bool, error) {
	s.calls++
	if s.err != nil {
		return 0, false, s.err
	}
	if s.used >= ceiling {
		return s.used, false, nil
	}
	s.used++
	return s.used, true, nil
}

// pngImage is the PNG signature followed by junk; sniffing only reads the prefix.
var pngImage = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, 'x')

func TestVerifyText(t *testing.T) {
	engine := NewEngine(&stubExtractor{}, &stubCounter{})

	result, err := engine.VerifyText(context.Background(), verify.FieldPlate, "abc-123")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "ABC123", result.Normalized)

	_, err = engine.VerifyText(context.Background(), verify.FieldKind("weight"), "x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestVerifyImage(t *testing.T) {
	extractor := &stubExtractor{text: "PRECINTO TDM38816"}
	counter := &stubCounter{}
	engine := NewEngine(extractor, counter)

	result, err := engine.VerifyImage(context.Background(), verify.FieldSeal, pngImage)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "TDM38816", result.Normalized)
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, 1, counter.calls)
}

func TestVerifyImageRejectsBadFormat(t *testing.T) {
	extractor := &stubExtractor{}
	counter := &stubCounter{}
	engine := NewEngine(extractor, counter)

	tests := []struct {
		name  string
		image []byte
	}{
		{name: "empty", image: nil},
		{name: "not an image", image: []byte("GIF89a")},
		{name: "oversized", image: append(append([]byte{}, pngImage...), make([]byte, maxImageBytes)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.VerifyImage(context.Background(), verify.FieldPlate, tt.image)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidImage))
		})
	}
	// Nothing was spent on rejected uploads.
	assert.Zero(t, extractor.calls)
	assert.Zero(t, counter.calls)
}

func TestVerifyImageQuota(t *testing.T) {
	extractor := &stubExtractor{text: "TDM38816"}
	counter := &stubCounter{}
	engine := NewEngine(extractor, counter, WithMonthlyQuota(2))

	for range 2 {
		_, err := engine.VerifyImage(context.Background(), verify.FieldSeal, pngImage)
		require.NoError(t, err)
	}

	for range 3 {
		_, err := engine.VerifyImage(context.Background(), verify.FieldSeal, pngImage)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaExceeded))
	}
	// The extractor is never reached past the quota, and rejected retries
	// leave the stored total at the ceiling.
	assert.Equal(t, 2, extractor.calls)
	assert.Equal(t, int64(2), counter.used)
}

func TestVerifyImageExtractorFailure(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("provider down")}
	engine := NewEngine(extractor, &stubCounter{})

	_, err := engine.VerifyImage(context.Background(), verify.FieldPlate, pngImage)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtractionFailed))
}

func TestVerifyImageCounterFailure(t *testing.T) {
	counter := &stubCounter{err: errors.New("store down")}
	extractor := &stubExtractor{}
	engine := NewEngine(extractor, counter)

	_, err := engine.VerifyImage(context.Background(), verify.FieldPlate, pngImage)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Zero(t, extractor.calls)
}
