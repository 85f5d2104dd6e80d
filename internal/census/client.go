// Package census supplies housing statistics for a property's state from the US
// Census Bureau population estimates API.
package census

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"homeworth/server/config"
	"homeworth/server/internal/models"
)

// SourceName labels the facts this client produces.
const SourceName = "census_housing"

// Variables requested from the housing dataset: total housing units and their
// household count.
var Variables = []string{"HU", "HUH"}

type Client struct {
	http    *resty.Client
	baseURL string
	logger  *logrus.Logger
}

func NewClient(cfg config.CensusConfig, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetQueryParam("key", cfg.APIKey)
	}

	return &Client{http: client, baseURL: cfg.BaseURL, logger: logger}
}

func (c *Client) Name() string {
	return SourceName
}

// Facts returns the housing variables for the property's state. A property whose state
// is unknown yields no facts and no error.
func (c *Client) Facts(ctx context.Context, property *models.Property) (map[string]string, error) {
	fips := config.StateFIPS(property.State)
	if fips == "" {
		c.logger.WithField("state", property.State).Info("No FIPS code for state, skipping census lookup")
		return nil, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("get", strings.Join(Variables, ",")).
		SetQueryParam("for", "state:"+fips).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("census request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("census api returned %s", resp.Status())
	}

	facts, err := parseTable(resp.Body())
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"state": property.State,
		"facts": len(facts),
	}).Debug("Fetched census housing data")
	return facts, nil
}

// parseTable reads the census response shape: a header row followed by value rows.
// Only the requested variables of the first value row are kept.
func parseTable(body []byte) (map[string]string, error) {
	var rows [][]*string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse census response: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("census response has no data rows")
	}

	wanted := make(map[string]bool, len(Variables))
	for _, v := range Variables {
		wanted[v] = true
	}

	header, values := rows[0], rows[1]
	facts := make(map[string]string, len(Variables))
	for i, name := range header {
		if name == nil || !wanted[*name] || i >= len(values) || values[i] == nil {
			continue
		}
		facts[*name] = *values[i]
	}
	return facts, nil
}
