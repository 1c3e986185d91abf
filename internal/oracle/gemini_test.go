package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

func geminiServer(t *testing.T, text string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		if gotBody != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 12, "candidatesTokenCount": 34},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestGemini(t *testing.T, baseURL string) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "test-key", BaseURL: baseURL})
	require.NoError(t, err)
	return g
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestGemini_GenerateCopy(t *testing.T) {
	var body map[string]any
	ts := geminiServer(t, `[{"subject":"S1","body":"Hi {{firstName}}"},{"subject":"S2","body":"Yo"}]`, &body)

	vs, err := newTestGemini(t, ts.URL).GenerateCopy(context.Background(), "acme.io", "CTOs")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "S1", vs[0].Subject)

	gen, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig sent")
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.NotNil(t, body["systemInstruction"])
}

func TestGemini_GenerateFilters(t *testing.T) {
	ts := geminiServer(t, `{"title":{"include":["CTO"]},"industry":{"include":["Fintech"]},"employee_count":["0 - 25"]}`, nil)

	f, err := newTestGemini(t, ts.URL).GenerateFilters(context.Background(), "CTOs at fintechs", "acme.io")
	require.NoError(t, err)
	assert.Equal(t, []string{"CTO"}, f.Title.Include)
	assert.Nil(t, f.Industry)
	require.NotNil(t, f.KeywordFilter)
	assert.Equal(t, []string{"fintech"}, f.KeywordFilter.Include)
}

func TestGemini_SuggestICPs(t *testing.T) {
	ts := geminiServer(t, `[{"name":"Ops Leaders","description":"d","target_audience":"COOs at logistics firms","pain_points":["a","b"],"company_size":"mid-market"}]`, nil)

	icps, err := newTestGemini(t, ts.URL).SuggestICPs(context.Background(), "acme.io")
	require.NoError(t, err)
	require.Len(t, icps, 1)
	assert.Equal(t, "mid-market", icps[0].CompanySize)
}

func TestGemini_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`))
	}))
	defer ts.Close()

	_, err := newTestGemini(t, ts.URL).GenerateCopy(context.Background(), "acme.io", "CTOs")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyGeminiErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{"api_429", genai.APIError{Code: 429}, true},
		{"api_503", genai.APIError{Code: 503}, true},
		{"api_401", genai.APIError{Code: 401}, false},
		{"net_timeout", timeoutErr{}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var te *resilience.TransientError
			assert.Equal(t, tt.wantTransient, errors.As(classifyGeminiErr(tt.in), &te))
		})
	}
}
