// Package scraper fetches raw vacancy records from the trudvsem open-data API.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ned0ra/diplom/internal/flatten"
)

const (
	DefaultBaseURL   = "https://opendata.trudvsem.ru/api/v1"
	DefaultBatchSize = 100
	DefaultDelay     = time.Second
	httpTimeout      = 15 * time.Second
)

// TrudvsemFetcher pages through the trudvsem open-data vacancy endpoint.
// A failing page ends the fetch: the records gathered so far are returned
// and the failure is only logged.
type TrudvsemFetcher struct {
	BaseURL   string
	BatchSize int
	client    *http.Client
	limiter   *rate.Limiter
	log       *zap.Logger
}

// NewTrudvsemFetcher constructs a fetcher that waits delay between pages.
// Empty or zero baseURL, batchSize and timeout select the defaults; a zero
// delay disables pacing.
func NewTrudvsemFetcher(baseURL string, batchSize int, delay, timeout time.Duration, log *zap.Logger) *TrudvsemFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if timeout <= 0 {
		timeout = httpTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TrudvsemFetcher{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		BatchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		log:       log,
	}
}

// Fetch returns up to maxCount raw records, in API order. The only error is
// cancellation of ctx, returned together with the records read before it.
func (f *TrudvsemFetcher) Fetch(ctx context.Context, maxCount int) ([]flatten.Node, error) {
	var records []flatten.Node

	for offset := 0; len(records) < maxCount; offset += f.BatchSize {
		if err := f.wait(ctx); err != nil {
			return records, fmt.Errorf("fetch cancelled at offset %d: %w", offset, err)
		}

		batch, err := f.fetchPage(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return records, fmt.Errorf("fetch cancelled at offset %d: %w", offset, ctx.Err())
			}
			f.log.Warn("page failed, ending fetch",
				zap.Int("offset", offset),
				zap.Int("collected", len(records)),
				zap.Error(err),
			)
			break
		}
		if len(batch) == 0 {
			break // no more results
		}
		records = append(records, batch...)
		f.log.Debug("page fetched", zap.Int("offset", offset), zap.Int("collected", len(records)))
	}

	if len(records) > maxCount {
		records = records[:maxCount]
	}
	return records, nil
}

// wait blocks until the limiter allows the next page or ctx is done.
func (f *TrudvsemFetcher) wait(ctx context.Context) error {
	r := f.limiter.Reserve()
	d := r.Delay()
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func (f *TrudvsemFetcher) fetchPage(ctx context.Context, offset int) ([]flatten.Node, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(f.BatchSize))

	reqURL := f.BaseURL + "/vacancies?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trudvsem returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	root, err := flatten.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	results, _ := root.Get("results")
	vacancies, ok := results.Get("vacancies")
	if !ok || vacancies.Kind != flatten.KindArray {
		return nil, nil
	}
	return vacancies.Items, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
