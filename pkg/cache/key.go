package cache

import (
	"net/url"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "jikan"

// Key identifies a cached response.
type Key struct {
	// Endpoint is the API path, e.g. "/anime/1/characters"
	Endpoint string

	// Query holds the request's query parameters
	Query url.Values
}

// NewKey creates a key for endpoint and query.
func NewKey(endpoint string, query url.Values) Key {
	return Key{Endpoint: endpoint, Query: query}
}

// String generates a deterministic cache key string.
// Format: jikan:<escaped endpoint>?<url-encoded query>
//
// Example:
//
//	jikan:anime?page=1&q=naruto&sfw=true
//
// Parameter names are sorted and empty values dropped; multiple values
// keep their order, so the key tracks exactly what is sent upstream.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		b.WriteByte(':')
		b.WriteString((&url.URL{Path: endpoint}).EscapedPath())
	}

	query := url.Values{}
	for key, values := range k.Query {
		for _, v := range values {
			if v != "" {
				query.Add(key, v)
			}
		}
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}

	return b.String()
}
