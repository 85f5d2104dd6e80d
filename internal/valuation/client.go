// Package valuation fetches property estimates from an external valuation API.
package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"homeworth/server/config"
	"homeworth/server/internal/source"
)

// Client calls the valuation API once per Fetch. It never retries.
type Client struct {
	http   *resty.Client
	logger *logrus.Logger
}

func NewClient(cfg config.ValuationConfig, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-Api-Key", cfg.APIKey)
	}

	return &Client{http: client, logger: logger}
}

func (c *Client) Kind() source.Kind {
	return source.KindValuation
}

// Fetch looks up address. An empty result list is reported as source.ErrEmpty; transport
// failures, non-2xx statuses and undecodable bodies are returned as errors.
func (c *Client) Fetch(ctx context.Context, address string) (source.Payload, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		Get("/properties")
	if err != nil {
		return nil, fmt.Errorf("failed to call valuation api: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("valuation api returned %s: %s", resp.Status(), truncate(resp.String(), 200))
	}

	payload, err := decode(resp.Body())
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"status":  resp.StatusCode(),
		"elapsed": resp.Time().String(),
	}).Debug("Valuation api responded")
	return payload, nil
}

// decode accepts a top-level array, an object wrapping an array under results or
// properties, or a single object. The first element of an array wins.
func decode(body []byte) (source.Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode valuation response: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		return first(v)
	case map[string]any:
		for _, wrapper := range []string{"results", "properties"} {
			wrapped, present := v[wrapper]
			if !present {
				continue
			}
			list, ok := wrapped.([]any)
			if !ok {
				return nil, source.ErrEmpty
			}
			return first(list)
		}
		if len(v) == 0 {
			return nil, source.ErrEmpty
		}
		return source.Payload(v), nil
	case nil:
		return nil, source.ErrEmpty
	default:
		return nil, fmt.Errorf("unexpected valuation response of type %T", raw)
	}
}

func first(list []any) (source.Payload, error) {
	if len(list) == 0 {
		return nil, source.ErrEmpty
	}
	obj, ok := list[0].(map[string]any)
	if !ok {
		return nil, errors.New("valuation response item is not an object")
	}
	return source.Payload(obj), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
