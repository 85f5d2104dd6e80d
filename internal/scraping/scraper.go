// Package scraping fetches property listing pages and extracts their fields.
package scraping

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"homeworth/server/config"
	"homeworth/server/internal/source"
)

// Scraper downloads one listing page per Fetch, waiting on a shared rate limiter so
// concurrent workers stay polite towards the listing site.
type Scraper struct {
	http       *resty.Client
	limiter    *rate.Limiter
	extractors []FieldExtractor
	logger     *logrus.Logger
}

// NewScraper builds a scraper. Without extractors the Redfin meta and label extractors
// are used.
func NewScraper(cfg config.ScraperConfig, logger *logrus.Logger, extractors ...FieldExtractor) *Scraper {
	if logger == nil {
		logger = logrus.New()
	}
	if len(extractors) == 0 {
		extractors = []FieldExtractor{RedfinMeta, RedfinLabels}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Scraper{
		http:       client,
		limiter:    rate.NewLimiter(limit, burst),
		extractors: extractors,
		logger:     logger,
	}
}

func (s *Scraper) Kind() source.Kind {
	return source.KindPage
}

// Fetch downloads pageURL and returns the extracted fields as a flat payload. A page
// without any recognised field yields source.ErrEmpty.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (source.Payload, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	res, err := s.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("page returned %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	payload := source.Payload{}
	for _, e := range s.extractors {
		for field, value := range e.Extract(doc) {
			if _, ok := payload[field]; !ok {
				payload[field] = value
			}
		}
	}

	if len(payload) == 0 {
		s.logger.WithField("url", pageURL).Warn("No property fields found on page")
		return nil, source.ErrEmpty
	}
	if _, ok := payload["url"]; !ok {
		payload["url"] = pageURL
	}

	s.logger.WithFields(logrus.Fields{
		"url":    pageURL,
		"fields": len(payload),
	}).Debug("Page scraped")
	return payload, nil
}
