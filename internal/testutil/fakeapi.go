package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	gojson "github.com/goccy/go-json"
)

// Field describes one field of a fake schema document.
type Field struct {
	Type        string `json:"type" yaml:"type"`
	RelatedType string `json:"related_type,omitempty" yaml:"related_type,omitempty"`
	Unique      bool   `json:"unique" yaml:"unique,omitempty"`
	PrimaryKey  bool   `json:"primary_key" yaml:"primary_key,omitempty"`
	Nullable    bool   `json:"nullable" yaml:"nullable,omitempty"`
}

// Scalar returns a plain field of the given type.
func Scalar(typ string) Field { return Field{Type: typ} }

// Key returns a unique primary key field of the given type.
func Key(typ string) Field { return Field{Type: typ, Unique: true, PrimaryKey: true} }

// Unique returns a unique, non-primary field.
func Unique(typ string) Field { return Field{Type: typ, Unique: true} }

// ToOne returns a single-valued relation field.
func ToOne() Field { return Field{Type: "related", RelatedType: "to_one", Nullable: true} }

// ToMany returns a multi-valued relation field.
func ToMany() Field { return Field{Type: "related", RelatedType: "to_many"} }

type fakeEndpoint struct {
	fields   map[string]Field
	ordering []string
	objects  []map[string]any
}

// FakeAPI is an in-process Datatracker serving a catalog, schema documents
// and paginated collections. It records every request URI it receives.
type FakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	endpoints map[string]*fakeEndpoint
	failures  map[string]int
	requests  map[string]int
	pageSize  int
}

// NewFakeAPI starts a fake API; the server is closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		endpoints: make(map[string]*fakeEndpoint),
		failures:  make(map[string]int),
		requests:  make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Handler returns the fake's request handler, for mounting it elsewhere.
func (f *FakeAPI) Handler() http.Handler {
	return http.HandlerFunc(f.serve)
}

// URL returns the base URL of the fake instance, with a trailing slash.
func (f *FakeAPI) URL() string {
	return f.Server.URL + "/"
}

// AddEndpoint registers an endpoint with its schema fields. A resource_uri
// field is added the way the real API does.
func (f *FakeAPI) AddEndpoint(endpoint string, fields map[string]Field, ordering ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := map[string]Field{"resource_uri": Scalar("string")}
	for name, field := range fields {
		all[name] = field
	}
	f.endpoints[endpoint] = &fakeEndpoint{fields: all, ordering: ordering}
}

// AddObjects appends records to an endpoint's collection.
func (f *FakeAPI) AddObjects(endpoint string, objects ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.endpoints[endpoint]
	if !ok {
		panic(fmt.Sprintf("fake API: unknown endpoint %s", endpoint))
	}
	ep.objects = append(ep.objects, objects...)
}

// MaxPageSize caps the page size regardless of the requested limit, which
// forces pagination with small fixtures. Zero means no cap.
func (f *FakeAPI) MaxPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

// Fail makes every request whose path equals path answer with status.
func (f *FakeAPI) Fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = status
}

// Requests returns how many times the exact request URI was served.
func (f *FakeAPI) Requests(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[uri]
}

// TotalRequests returns the number of requests served so far.
func (f *FakeAPI) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

// RequestsUnder counts requests whose path starts with prefix.
func (f *FakeAPI) RequestsUnder(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for uri, c := range f.requests {
		if strings.HasPrefix(uri, prefix) {
			n += c
		}
	}
	return n
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests[r.URL.RequestURI()]++
	if status, ok := f.failures[r.URL.Path]; ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/api/v1/":
		f.writeJSON(w, f.catalog(""))
	case strings.HasSuffix(path, "/schema/"):
		ep, ok := f.endpoints[strings.TrimSuffix(path, "schema/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.writeJSON(w, map[string]any{"fields": ep.fields, "ordering": ep.ordering})
	case strings.Count(path, "/") == 4:
		f.writeJSON(w, f.catalog(path))
	default:
		ep, ok := f.endpoints[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.writeJSON(w, f.list(path, ep, r.URL.Query()))
	}
}

// catalog lists categories when app is empty, otherwise the endpoints of app.
func (f *FakeAPI) catalog(app string) map[string]any {
	out := map[string]any{}
	for endpoint := range f.endpoints {
		segs := strings.Split(strings.Trim(endpoint, "/"), "/")
		category := "/api/v1/" + segs[2] + "/"
		if app == "" {
			out[segs[2]] = map[string]string{"list_endpoint": category, "schema": category + "schema/"}
		} else if category == app {
			out[segs[3]] = map[string]string{"list_endpoint": endpoint, "schema": endpoint + "schema/"}
		}
	}
	return out
}

func (f *FakeAPI) list(endpoint string, ep *fakeEndpoint, q url.Values) map[string]any {
	limit := atoiDefault(q.Get("limit"), 20)
	if f.pageSize > 0 && limit > f.pageSize {
		limit = f.pageSize
	}
	offset := atoiDefault(q.Get("offset"), 0)

	objects := slices.Clone(ep.objects)
	if field := q.Get("order_by"); field != "" {
		slices.SortStableFunc(objects, func(a, b map[string]any) int {
			return compareValues(a[field], b[field])
		})
	}

	end := min(offset+limit, len(objects))
	start := min(offset, end)

	var next any
	if end < len(objects) {
		nq := url.Values{}
		nq.Set("limit", strconv.Itoa(limit))
		nq.Set("offset", strconv.Itoa(end))
		if field := q.Get("order_by"); field != "" {
			nq.Set("order_by", field)
		}
		next = endpoint + "?" + nq.Encode()
	}

	return map[string]any{
		"meta": map[string]any{
			"limit":       limit,
			"offset":      offset,
			"total_count": len(objects),
			"next":        next,
			"previous":    nil,
		},
		"objects": objects[start:end],
	}
}

func (f *FakeAPI) writeJSON(w http.ResponseWriter, v any) {
	data, err := gojson.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
