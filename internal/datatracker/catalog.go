package datatracker

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/dtmirror/internal/apipath"
)

// CatalogEntry is one entry of the API root or of a category listing.
type CatalogEntry struct {
	ListEndpoint string `json:"list_endpoint"`
	Schema       string `json:"schema"`
}

// Endpoints walks the two-level catalog: the API root lists categories, and
// each category lists its model endpoints. The leaf endpoints are returned
// sorted and without duplicates.
func (c *Client) Endpoints(ctx context.Context) ([]string, error) {
	root := map[string]CatalogEntry{}
	if err := c.getJSON(ctx, apipath.Prefix, &root); err != nil {
		return nil, fmt.Errorf("reading API root: %w", err)
	}

	categories := make([]string, 0, len(root))
	for name := range root {
		categories = append(categories, name)
	}
	slices.Sort(categories)

	var endpoints []string
	for _, name := range categories {
		listing := map[string]CatalogEntry{}
		if err := c.getJSON(ctx, root[name].ListEndpoint, &listing); err != nil {
			return nil, fmt.Errorf("reading category %s: %w", name, err)
		}
		for _, entry := range listing {
			endpoints = append(endpoints, entry.ListEndpoint)
		}
		c.logger.Debug("category listed", "category", name, "endpoints", len(listing))
	}

	slices.Sort(endpoints)
	return slices.Compact(endpoints), nil
}
