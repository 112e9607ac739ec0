package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"civicshield/backend/internal/config"
	"civicshield/backend/internal/documents"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GeminiOptions configures the external generator client.
type GeminiOptions struct {
	APIKey        string
	URL           string
	BaseDelay     time.Duration
	MaxRetries    int
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// GeminiClient talks to a Gemini-style generateContent endpoint.
type GeminiClient struct {
	http      *resty.Client
	apiKey    string
	url       string
	baseDelay time.Duration
	limiter   *rate.Limiter
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewGeminiClient(opts GeminiOptions, log *zap.Logger, m *metrics.Metrics) *GeminiClient {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = config.VerdictBaseDelay
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	g := &GeminiClient{
		apiKey:    opts.APIKey,
		url:       opts.URL,
		baseDelay: opts.BaseDelay,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		log:       logger.OrNop(log).Named("gemini"),
		metrics:   m,
	}
	g.http = resty.New().
		SetLogger(g.log.Sugar()).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.BaseDelay).
		SetRetryMaxWaitTime(g.backoff(opts.MaxRetries + 1)).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err == nil && resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(g.retryAfter).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			return g.limiter.Wait(r.Context())
		})
	return g
}

// backoff is the wait after the given failed attempt: BaseDelay doubled for
// every attempt after the first.
func (g *GeminiClient) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return g.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
}

func (g *GeminiClient) retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	delay := g.backoff(resp.Request.Attempt)
	g.log.Info("rate limited, backing off", zap.Int("attempt", resp.Request.Attempt), zap.Duration("delay", delay))
	g.metrics.VerdictRetry()
	return delay, nil
}

// Enabled reports whether an API key is configured.
func (g *GeminiClient) Enabled() bool {
	return g.apiKey != "" && g.apiKey != "your_gemini_api_key_here"
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate sends prompt and returns the first candidate's text. The resty
// client retries HTTP 429 up to maxRetries times with exponential backoff;
// every other status fails at once.
func (g *GeminiClient) generate(ctx context.Context, op, prompt string, cfg generationConfig) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}
	body := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(body).
		Post(g.url)
	if err != nil {
		return "", &ExternalServiceError{Op: op, Err: err}
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		g.log.Warn("rate limit persisted, giving up", zap.String("op", op), zap.Int("attempt", resp.Request.Attempt))
		return "", &ExternalServiceError{Op: op, Status: resp.StatusCode(), Err: &RateLimitError{Attempts: resp.Request.Attempt}}
	}
	if resp.IsError() {
		return "", &ExternalServiceError{Op: op, Status: resp.StatusCode(), Err: errors.New(truncate(resp.String(), 200))}
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", &ExternalServiceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &ExternalServiceError{Op: op, Err: errors.New("empty response")}
	}
	text := out.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", &ExternalServiceError{Op: op, Err: errors.New("empty response")}
	}
	return text, nil
}

type wireVerdict struct {
	IsValid     *bool    `json:"isValid"`
	Score       *float64 `json:"score"`
	Verdict     string   `json:"verdict"`
	Flags       []string `json:"flags"`
	Category    string   `json:"category"`
	Severity    string   `json:"severity"`
	IsDuplicate bool     `json:"isDuplicate"`
	DuplicateOf *string  `json:"duplicateOf"`
}

// Verdict implements Generator.
func (g *GeminiClient) Verdict(ctx context.Context, req VerdictRequest) (*Verdict, error) {
	text, err := g.generate(ctx, "verdict", verdictPrompt(req), generationConfig{Temperature: 0.3, MaxOutputTokens: 1024})
	if err != nil {
		return nil, err
	}
	return parseVerdict(text)
}

// Order implements Generator.
func (g *GeminiClient) Order(ctx context.Context, in documents.OrderInput) (string, error) {
	return g.generate(ctx, "order", documents.OrderPrompt(in), generationConfig{Temperature: 0.5, MaxOutputTokens: 2048})
}

// parseVerdict reads the first {...} block of a model answer.
func parseVerdict(text string) (*Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, &ExternalServiceError{Op: "verdict", Err: errors.New("no JSON object in response")}
	}
	var w wireVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &w); err != nil {
		return nil, &ExternalServiceError{Op: "verdict", Err: fmt.Errorf("malformed verdict: %w", err)}
	}
	if w.IsValid == nil || w.Score == nil {
		return nil, &ExternalServiceError{Op: "verdict", Err: errors.New("verdict is missing isValid or score")}
	}
	severity, _ := models.ParseSeverity(strings.ToLower(strings.TrimSpace(w.Severity)))
	v := &Verdict{
		IsValid:     *w.IsValid,
		Score:       clamp(int(math.Round(*w.Score)), 0, 100),
		Verdict:     w.Verdict,
		Flags:       w.Flags,
		Category:    strings.TrimSpace(w.Category),
		Severity:    severity,
		IsDuplicate: w.IsDuplicate,
	}
	if v.Flags == nil {
		v.Flags = []string{}
	}
	if w.DuplicateOf != nil {
		v.DuplicateOf = strings.TrimSpace(*w.DuplicateOf)
	}
	return v, nil
}

func verdictPrompt(req VerdictRequest) string {
	address := req.Address
	if address == "" {
		address = "Not provided"
	}
	var b strings.Builder
	b.WriteString("You are a government complaint analysis AI. Analyze the following citizen complaint and provide a structured assessment.\n\n")
	b.WriteString("COMPLAINT DETAILS:\n")
	fmt.Fprintf(&b, "- Department: %s\n- Heading: %s\n- Description: %s\n- Location: %s\n", req.Department, req.Heading, req.Description, address)

	if req.ExtractedText != "" {
		b.WriteString("\nTEXT EXTRACTED FROM ATTACHED DOCUMENTS:\n")
		b.WriteString(req.ExtractedText)
		b.WriteString("\n")
	}

	if len(req.Similar) > 0 {
		b.WriteString("\nSIMILAR EXISTING COMPLAINTS (check for duplicates):\n")
		for i, m := range req.Similar {
			fmt.Fprintf(&b, "%d. [%s] %s (similarity %.0f%%): %s\n", i+1, m.ComplaintID, m.Heading, m.Similarity*100, m.Excerpt)
		}
	} else {
		b.WriteString("\nNo similar existing complaints were found.\n")
	}

	b.WriteString(`
ANALYZE FOR:
1. Is this a valid, genuine complaint? (not spam, not abusive, not irrelevant)
2. Is this a duplicate of one of the similar complaints listed above?
3. Does it contain unknown/meaningless/spam content?
4. What is the severity? (low/medium/high/critical)
5. What category does this fall under?
6. Brief verdict explaining your assessment

RESPOND IN THIS EXACT JSON FORMAT ONLY (no markdown, no code blocks):
{
  "isValid": true/false,
  "score": 0-100,
  "verdict": "brief explanation",
  "flags": ["flag1", "flag2"],
  "category": "category name",
  "severity": "low/medium/high/critical",
  "isDuplicate": false,
  "duplicateOf": null
}`)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
