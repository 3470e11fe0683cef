package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Analyzer is the external analysis collaborator. Implementations must
// be safe for sequential reuse; the classifier never calls Analyze
// concurrently.
type Analyzer interface {
	Analyze(ctx context.Context, ac AnalysisContext) (*AnalysisResult, error)
}

// HTTPAnalyzer posts the analysis context as JSON to a remote endpoint
// and parses the structured response. One transient failure is retried
// within the same call; everything else is the classifier's problem.
type HTTPAnalyzer struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
}

func NewHTTPAnalyzer(endpoint, apiKey string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPAnalyzer{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 1,
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, ac AnalysisContext) (*AnalysisResult, error) {
	body, err := json.Marshal(ac)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis context: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	var result *AnalysisResult
	err = backoff.Retry(func() error {
		res, attemptErr := a.attempt(ctx, body)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, a.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (a *HTTPAnalyzer) attempt(ctx context.Context, body []byte) (*AnalysisResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var result AnalysisResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("unparsable analysis response: %w", err))
		}
		return &result, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("analysis HTTP %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("analysis HTTP %d: %s", resp.StatusCode, raw))
	}
}
