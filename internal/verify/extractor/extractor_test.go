package extractor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "garita/pkg/domain-errors"
	"garita/pkg/platform/circuit"
)

func TestExtract(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0x01}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, image, decoded)

		json.NewEncoder(w).Encode(extractResponse{Text: "PRECINTO TDM38816"})
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	text, err := client.Extract(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, "PRECINTO TDM38816", text)
}

func TestExtractProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.Extract(context.Background(), []byte{0x01})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtractionFailed))
}

func TestExtractTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Extract(ctx, []byte{0x01})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestExtractBreakerOpensAndFailsFast(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	breaker := circuit.New("ocr", circuit.WithFailureThreshold(2))
	client := New(server.URL, "", WithBreaker(breaker))

	_, err := client.Extract(context.Background(), []byte{0x01})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtractionFailed))
	_, err = client.Extract(context.Background(), []byte{0x01})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtractionFailed))
	require.True(t, breaker.IsOpen())

	// Open circuit short-circuits before the provider is called.
	_, err = client.Extract(context.Background(), []byte{0x01})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtractionFailed))
	assert.Equal(t, 2, hits)
}

func TestExtractUnreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", "", WithTimeout(200*time.Millisecond))
	_, err := client.Extract(context.Background(), []byte{0x01})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtractionFailed))
}
