// Package source defines the contract shared by every external data source the
// lookup pipeline can consult on a miss.
package source

import (
	"context"
	"errors"
)

// Kind identifies which binding produced a payload so it can be normalized correctly.
type Kind string

const (
	KindValuation Kind = "valuation_api"
	KindPage      Kind = "page_scrape"
)

// Payload is a loosely typed record as returned by a source.
type Payload map[string]any

// ErrEmpty is returned when a source answered successfully but had no matching entity.
var ErrEmpty = errors.New("source returned no results")

// Fetcher fetches the raw payload for a key. Implementations make exactly one attempt and
// return ErrEmpty for an empty result; any other error is an upstream failure.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (Payload, error)
	Kind() Kind
}
