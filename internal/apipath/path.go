// Package apipath parses Datatracker resource paths.
//
// Every resource the API exposes lives under a fixed prefix:
//
//	/api/v1/<app>/<model>/          collection (endpoint)
//	/api/v1/<app>/<model>/<key>/    single resource
//
// Relation values in API records are resource paths of the second form; the
// mirror needs the endpoint they point at (to find the target table) and the
// key (to store as the foreign key value).
package apipath

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Prefix is the path every API resource starts with.
const Prefix = "/api/v1/"

// Path is a parsed resource path.
type Path struct {
	App   string
	Model string
	Key   string // empty for a collection path
}

// ParseError reports a string that is not a resource path.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid resource path %q: %s", e.Input, e.Reason)
}

// IsParseError returns true if err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse splits a resource path into app, model and key.
// Absolute URLs are accepted and reduced to their path; a query string is ignored.
func Parse(s string) (Path, error) {
	raw := s
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Path{}, &ParseError{Input: raw, Reason: err.Error()}
		}
		s = u.Path
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	if !strings.HasPrefix(s, Prefix) {
		return Path{}, &ParseError{Input: raw, Reason: "missing " + Prefix + " prefix"}
	}
	if !strings.HasSuffix(s, "/") {
		return Path{}, &ParseError{Input: raw, Reason: "missing trailing slash"}
	}

	segs := strings.Split(strings.TrimSuffix(strings.TrimPrefix(s, Prefix), "/"), "/")
	for _, seg := range segs {
		if seg == "" {
			return Path{}, &ParseError{Input: raw, Reason: "empty path segment"}
		}
	}

	switch len(segs) {
	case 2:
		return Path{App: segs[0], Model: segs[1]}, nil
	case 3:
		return Path{App: segs[0], Model: segs[1], Key: segs[2]}, nil
	default:
		return Path{}, &ParseError{Input: raw, Reason: fmt.Sprintf("expected 2 or 3 segments after prefix, got %d", len(segs))}
	}
}

// Endpoint returns the collection path the resource belongs to.
func (p Path) Endpoint() string {
	return Prefix + p.App + "/" + p.Model + "/"
}

// Table returns the mirror table name for the resource's endpoint.
func (p Path) Table(prefix string) string {
	return prefix + "_" + p.App + "_" + p.Model
}

// IsCollection reports whether the path names an endpoint rather than a resource.
func (p Path) IsCollection() bool {
	return p.Key == ""
}

// TableName maps an endpoint path to its table name.
func TableName(prefix, endpoint string) (string, error) {
	p, err := Parse(endpoint)
	if err != nil {
		return "", err
	}
	return p.Table(prefix), nil
}

// JunctionName names the table holding the elements of a to-many column.
func JunctionName(table, column string) string {
	return table + "_" + column
}
