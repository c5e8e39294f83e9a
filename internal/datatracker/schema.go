package datatracker

import (
	"context"
	"fmt"
)

// SchemaDocument is the self-description served at <endpoint>schema/.
type SchemaDocument struct {
	Fields   map[string]FieldSpec `json:"fields"`
	Ordering []string             `json:"ordering"`
}

// FieldSpec describes one field of a SchemaDocument.
type FieldSpec struct {
	Type        string `json:"type"`
	RelatedType string `json:"related_type,omitempty"`
	Unique      bool   `json:"unique"`
	PrimaryKey  bool   `json:"primary_key"`
	Nullable    bool   `json:"nullable"`
	HelpText    string `json:"help_text,omitempty"`
}

// Schema fetches the schema document of an endpoint.
func (c *Client) Schema(ctx context.Context, endpoint string) (*SchemaDocument, error) {
	doc := &SchemaDocument{}
	if err := c.getJSON(ctx, endpoint+"schema/", doc); err != nil {
		return nil, fmt.Errorf("reading schema of %s: %w", endpoint, err)
	}
	return doc, nil
}
