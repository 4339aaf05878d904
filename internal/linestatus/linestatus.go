// Package linestatus scrapes the rail operator's status page for the
// current condition of each metro and train line. It is independent of the
// planning core and caches aggressively: rail status changes on the order
// of minutes, not seconds.
package linestatus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/peantunes/sptrans-core/internal/cache"
	"github.com/peantunes/sptrans-core/internal/metrics"
)

// LineStatus is the scraped condition of one rail line
type LineStatus struct {
	Line      string    `json:"line"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// lineBlock matches one line entry on the operator status page:
// a line number, its name and its current situation text.
var lineBlock = regexp.MustCompile(
	`(?s)data-line="(\d+)"[^>]*>.*?class="line-name"[^>]*>([^<]+)<.*?class="line-status"[^>]*>([^<]+)<`)

// Service fetches and caches line statuses
type Service struct {
	client *http.Client
	url    string
	ttl    time.Duration
}

// NewService creates a Service scraping the given status page URL
func NewService(url string, ttl time.Duration) *Service {
	return &Service{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		ttl:    ttl,
	}
}

// Lines returns the current status of every rail line, from cache when
// fresh. A failed scrape degrades to the cached copy when one exists.
func (s *Service) Lines(ctx context.Context) ([]LineStatus, error) {
	var cached []LineStatus
	if err := cache.GetJSON(ctx, cache.LineStatusKey(), &cached); err == nil {
		metrics.LineStatusScrapes.WithLabelValues("cache").Inc()
		return cached, nil
	}

	lines, err := s.scrape(ctx)
	if err != nil {
		metrics.LineStatusScrapes.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LineStatusScrapes.WithLabelValues("ok").Inc()

	if err := cache.SetJSON(ctx, cache.LineStatusKey(), lines, s.ttl); err != nil {
		// Caching is best-effort; the scrape already succeeded.
		return lines, nil
	}
	return lines, nil
}

func (s *Service) scrape(ctx context.Context) ([]LineStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building line status request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching line status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("line status page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("reading line status page: %w", err)
	}

	return Parse(string(body)), nil
}

// Parse extracts line statuses from the operator status page HTML
func Parse(html string) []LineStatus {
	now := time.Now()

	lines := []LineStatus{}
	for _, m := range lineBlock.FindAllStringSubmatch(html, -1) {
		lines = append(lines, LineStatus{
			Line:      m[1],
			Name:      strings.TrimSpace(m[2]),
			Status:    strings.TrimSpace(m[3]),
			UpdatedAt: now,
		})
	}
	return lines
}
