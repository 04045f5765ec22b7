package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "simple endpoint no params",
			key:  Key{Endpoint: "/top/anime"},
			want: "jikan:top/anime",
		},
		{
			name: "trailing slash normalised",
			key:  Key{Endpoint: "anime/1/"},
			want: "jikan:anime/1",
		},
		{
			name: "query params sorted",
			key: NewKey("/anime", url.Values{
				"sfw":  {"true"},
				"q":    {"naruto"},
				"page": {"2"},
			}),
			want: "jikan:anime?page=2&q=naruto&sfw=true",
		},
		{
			name: "empty values dropped",
			key:  NewKey("/anime", url.Values{"q": {""}, "page": {"1"}, "sort": nil}),
			want: "jikan:anime?page=1",
		},
		{
			name: "multi value keeps order",
			key:  NewKey("/anime", url.Values{"genres": {"4", "1"}}),
			want: "jikan:anime?genres=4&genres=1",
		},
		{
			name: "separators escaped",
			key:  NewKey("/anime", url.Values{"q": {"a:b&c=d"}}),
			want: "jikan:anime?q=a%3Ab%26c%3Dd",
		},
		{
			name: "question mark in endpoint escaped",
			key:  Key{Endpoint: "/anime?x"},
			want: "jikan:anime%3Fx",
		},
		{
			name: "empty endpoint",
			key:  Key{},
			want: "jikan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_StringDeterministic(t *testing.T) {
	key := NewKey("/top/anime", url.Values{"page": {"1"}, "filter": {"bypopularity"}, "limit": {"25"}})

	first := key.String()
	for i := 0; i < 50; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKey_DistinctQueriesDistinctKeys(t *testing.T) {
	pairs := []struct {
		a, b Key
	}{
		{NewKey("/anime", url.Values{"q": {"a", "b"}}), NewKey("/anime", url.Values{"q": {"a,b"}})},
		{NewKey("/anime", url.Values{"q": {"x:y=1"}}), NewKey("/anime", url.Values{"q": {"x"}, "y": {"1"}})},
		{NewKey("/anime/1", nil), NewKey("/anime", url.Values{"1": {""}})},
	}

	for _, p := range pairs {
		if p.a.String() == p.b.String() {
			t.Errorf("keys collide: %q", p.a.String())
		}
	}
}
