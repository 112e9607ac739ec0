package analysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"civicshield/backend/internal/corpus"
	"civicshield/backend/internal/documents"
	"civicshield/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Verdict(ctx context.Context, req VerdictRequest) (*Verdict, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*Verdict)
	return v, args.Error(1)
}

func (m *MockGenerator) Order(ctx context.Context, in documents.OrderInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func TestRuleBased_ShortDescriptionIsInvalid(t *testing.T) {
	v := RuleBased("water", "Water leak", "leak here!")

	assert.False(t, v.IsValid)
	assert.Equal(t, 40, v.Score)
	assert.Equal(t, models.SeverityMedium, v.Severity)
	assert.Contains(t, v.Flags, "Description too short")
	assert.Equal(t, verdictFlagged, v.Verdict)
	assert.Equal(t, SourceRules, v.Source)
}

func TestRuleBased_CriticalKeyword(t *testing.T) {
	desc := "There is an emergency at the junction where the old water main burst and " +
		strings.Repeat("the road surface is caving in near the school gate every morning. ", 2)
	require.GreaterOrEqual(t, len(desc), 150)

	v := RuleBased("roads", "Road caving in near school", desc)

	assert.True(t, v.IsValid)
	assert.Equal(t, 80, v.Score)
	assert.Equal(t, models.SeverityCritical, v.Severity)
	assert.Empty(t, v.Flags)
	assert.Equal(t, "roads", v.Category)
}

func TestRuleBased_HighKeywordAndShortHeading(t *testing.T) {
	v := RuleBased("electricity", "Wire", "Streetlight pole has exposed wiring, an urgent electric hazard for kids.")

	assert.True(t, v.IsValid)
	assert.Equal(t, 55, v.Score)
	assert.Equal(t, models.SeverityHigh, v.Severity)
	assert.Equal(t, []string{"Heading too short"}, v.Flags)
}

func TestRuleBased_Spam(t *testing.T) {
	cases := map[string]struct{ heading, desc string }{
		"token in heading": {"asdf asdf", "A normal looking description of a real civic problem."},
		"repeated run":     {"Broken pipe", "Water everywhere aaaaaaa please come and fix it soon."},
		"case insensitive": {"Broken pipe", "This is a FAKE report about a broken pipe downtown."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := RuleBased("water", tc.heading, tc.desc)

			assert.False(t, v.IsValid)
			assert.Contains(t, v.Flags, "Potential spam content detected")
		})
	}
}

func TestRuleBased_RepeatedRunDoesNotSpanLines(t *testing.T) {
	assert.False(t, hasRepeatedRun("aaa\naaa", 6))
	assert.True(t, hasRepeatedRun("xx!!!!!!yy", 6))
}

func TestRuleBased_AbusiveLanguageIsFlaggedOnly(t *testing.T) {
	v := RuleBased("sanitation", "Garbage not collected", "The idiot contractor has not collected garbage for two weeks now.")

	assert.True(t, v.IsValid)
	assert.Equal(t, 55, v.Score)
	assert.Contains(t, v.Flags, "Potentially inappropriate language")
}

func TestRuleBased_Deterministic(t *testing.T) {
	a := RuleBased("water", "No water supply", "No water supply in sector 4 since Monday morning.")
	b := RuleBased("water", "No water supply", "No water supply in sector 4 since Monday morning.")

	assert.Equal(t, a, b)
}

func TestApplyDuplicate(t *testing.T) {
	v := Verdict{IsValid: true, Score: 85, IsDuplicate: true, DuplicateOf: "CS-000003", Flags: []string{}}

	ApplyDuplicate(&v)
	ApplyDuplicate(&v)

	assert.False(t, v.IsValid)
	assert.Equal(t, 30, v.Score)
	assert.Equal(t, []string{"Duplicate of complaint CS-000003"}, v.Flags)

	low := Verdict{IsValid: true, Score: 10, IsDuplicate: true}
	ApplyDuplicate(&low)
	assert.Equal(t, 10, low.Score)
	assert.Equal(t, []string{"Duplicate of an existing complaint"}, low.Flags)
}

// TestAnalyzer_FallsBackToRules verifies that any generator failure yields the
// rule-based verdict.
func TestAnalyzer_FallsBackToRules(t *testing.T) {
	// Arrange
	gen := new(MockGenerator)
	gen.On("Verdict", mock.Anything, mock.Anything).Return(nil, &ExternalServiceError{Op: "verdict", Status: 500, Err: errors.New("boom")})
	a := NewAnalyzer(gen, zap.NewNop(), nil)
	req := VerdictRequest{Department: "water", Heading: "Water leak", Description: "leak here!"}

	// Act
	v := a.Analyze(context.Background(), req)

	// Assert
	assert.Equal(t, RuleBased("water", "Water leak", "leak here!"), v)
	gen.AssertExpectations(t)
}

func TestAnalyzer_ExternalDuplicateOverridesValidity(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Verdict", mock.Anything, mock.Anything).Return(&Verdict{
		IsValid: true, Score: 90, Verdict: "Looks real", Flags: []string{}, Severity: models.SeverityHigh,
		IsDuplicate: true, DuplicateOf: "CS-000001",
	}, nil)
	a := NewAnalyzer(gen, zap.NewNop(), nil)

	v := a.Analyze(context.Background(), VerdictRequest{Department: "water"})

	assert.False(t, v.IsValid)
	assert.Equal(t, 30, v.Score)
	assert.Equal(t, SourceExternal, v.Source)
	assert.Equal(t, "water", v.Category)
	assert.Contains(t, v.Flags, "Duplicate of complaint CS-000001")
}

func TestAnalyzer_NilGenerator(t *testing.T) {
	a := NewAnalyzer(nil, nil, nil)

	v := a.Analyze(context.Background(), VerdictRequest{Department: "roads", Heading: "Pothole", Description: "Big pothole on the ring road near exit 4."})

	assert.Equal(t, SourceRules, v.Source)
}

func TestAnalyzer_OrderFallsBackToTemplate(t *testing.T) {
	// Arrange
	gen := new(MockGenerator)
	gen.On("Order", mock.Anything, mock.Anything).Return("", ErrDisabled)
	a := NewAnalyzer(gen, zap.NewNop(), nil)
	fixed := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }
	c := &models.Complaint{ComplaintID: "CS-000002", Department: "roads", Heading: "Pothole"}

	// Act
	order := a.Order(context.Background(), c, models.AIAnalysis{Score: 70, Severity: models.SeverityMedium})

	// Assert
	assert.Equal(t, documents.OrderNumber("CS-000002", fixed), order.OrderNumber)
	assert.Contains(t, order.Content, "GOVERNMENT OF INDIA")
	require.NotNil(t, order.GeneratedAt)
	assert.True(t, order.GeneratedAt.Equal(fixed))
}

func TestAnalyzer_OrderUsesGeneratorText(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Order", mock.Anything, mock.Anything).Return("  ORDER TEXT  ", nil)
	a := NewAnalyzer(gen, zap.NewNop(), nil)

	order := a.Order(context.Background(), &models.Complaint{ComplaintID: "CS-000002"}, models.AIAnalysis{})

	assert.Equal(t, "ORDER TEXT", order.Content)
}

func geminiAnswer(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(text)
	return `{"candidates":[{"content":{"parts":[{"text":"` + escaped + `"}]}}]}`
}

func newTestGemini(url string) *GeminiClient {
	g := NewGeminiClient(GeminiOptions{APIKey: "k", URL: url, BaseDelay: time.Millisecond, MaxRetries: 3}, zap.NewNop(), nil)
	return g
}

// TestGemini_RateLimitExhaustsRetries verifies that a persistent 429 is tried
// once plus three retries with doubling delays.
func TestGemini_RateLimitExhaustsRetries(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	core, logs := observer.New(zapcore.InfoLevel)
	g := NewGeminiClient(GeminiOptions{APIKey: "k", URL: srv.URL, BaseDelay: time.Millisecond, MaxRetries: 3}, zap.New(core), nil)

	// Act
	_, err := g.Verdict(context.Background(), VerdictRequest{Department: "water"})

	// Assert
	require.Error(t, err)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 4, rl.Attempts)
	assert.Equal(t, int32(4), calls.Load())
	var delays []time.Duration
	for _, e := range logs.FilterMessage("rate limited, backing off").All() {
		delays = append(delays, e.ContextMap()["delay"].(time.Duration))
	}
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, delays)
	assert.Equal(t, 1, logs.FilterMessage("rate limit persisted, giving up").Len())
}

func TestGemini_Backoff(t *testing.T) {
	g := NewGeminiClient(GeminiOptions{BaseDelay: 3 * time.Second, MaxRetries: 3}, nil, nil)

	assert.Equal(t, 3*time.Second, g.backoff(1))
	assert.Equal(t, 6*time.Second, g.backoff(2))
	assert.Equal(t, 12*time.Second, g.backoff(3))
}

func TestGemini_CanceledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	g := NewGeminiClient(GeminiOptions{APIKey: "k", URL: srv.URL, BaseDelay: time.Hour, MaxRetries: 3}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Verdict(ctx, VerdictRequest{})

	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "नम", truncate("नमस्ते", 2))
	assert.Equal(t, "short", truncate("short", 10))
}

func TestGemini_RecoversAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geminiAnswer("```json\n{\"isValid\": true, \"score\": 77.6, \"verdict\": \"ok\", \"flags\": [], \"category\": \"Water\", \"severity\": \"HIGH\", \"isDuplicate\": false, \"duplicateOf\": null}\n```")))
	}))
	defer srv.Close()
	g := newTestGemini(srv.URL)

	v, err := g.Verdict(context.Background(), VerdictRequest{Department: "water"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, v.IsValid)
	assert.Equal(t, 78, v.Score)
	assert.Equal(t, models.SeverityHigh, v.Severity)
	assert.Equal(t, "Water", v.Category)
}

func TestGemini_MalformedVerdictFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(geminiAnswer(`{"verdict": "no score here"}`)))
	}))
	defer srv.Close()
	g := newTestGemini(srv.URL)

	_, err := g.Verdict(context.Background(), VerdictRequest{})
	var ext *ExternalServiceError
	assert.ErrorAs(t, err, &ext)

	a := NewAnalyzer(g, zap.NewNop(), nil)
	v := a.Analyze(context.Background(), VerdictRequest{Department: "roads", Heading: "Pothole", Description: "Big pothole on the ring road near exit 4."})
	assert.Equal(t, SourceRules, v.Source)
}

func TestGemini_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL).Order(context.Background(), documents.OrderInput{})

	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusInternalServerError, ext.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGemini_DisabledWithoutKey(t *testing.T) {
	g := NewGeminiClient(GeminiOptions{URL: "http://127.0.0.1:1"}, nil, nil)

	_, err := g.Verdict(context.Background(), VerdictRequest{})

	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, g.Enabled())
}

func TestVerdictPrompt_IncludesContext(t *testing.T) {
	p := verdictPrompt(VerdictRequest{
		Department:    "water",
		Heading:       "Leak",
		Description:   "Pipe leaking",
		ExtractedText: "--- Document 1: bill.pdf ---\nAmount due",
		Similar:       []corpus.Match{{ComplaintID: "CS-000009", Heading: "Pipe leak", Excerpt: "Leaking pipe", Similarity: 0.82}},
	})

	assert.Contains(t, p, "Location: Not provided")
	assert.Contains(t, p, "Amount due")
	assert.Contains(t, p, "1. [CS-000009] Pipe leak (similarity 82%): Leaking pipe")
	assert.Contains(t, p, `"duplicateOf": null`)
}
