package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err:  &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "500 Internal Server Error"},
			want: "jikan server error (status 500): 500 Internal Server Error",
		},
		{
			name: "with wrapped error",
			err:  &APIError{StatusCode: 404, ErrorClass: ErrorClassNotFound, Message: "404 Not Found", Err: ErrNotFound},
			want: "jikan not_found error (status 404): 404 Not Found: resource not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	apiErr := &APIError{StatusCode: 429, ErrorClass: ErrorClassRateLimit, Message: "429 Too Many Requests"}
	err := error(&FetchError{
		Endpoint:   "/top/anime",
		Class:      ErrorClassRateLimit,
		StatusCode: 429,
		Attempts:   4,
		Err:        fmt.Errorf("%w: %w", ErrRetryExhausted, apiErr),
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("errors.Is(ErrRetryExhausted) = false")
	}

	var target *APIError
	if !errors.As(err, &target) {
		t.Fatal("errors.As(*APIError) = false")
	}
	if target.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", target.StatusCode)
	}

	if !strings.Contains(err.Error(), "after 4 attempt(s)") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"api error", &APIError{ErrorClass: ErrorClassNetwork}, ErrorClassNetwork},
		{"wrapped api error", fmt.Errorf("wrap: %w", &APIError{ErrorClass: ErrorClassDecode}), ErrorClassDecode},
		{"fetch error wins", &FetchError{Class: ErrorClassClient, Err: &APIError{ErrorClass: ErrorClassServer}}, ErrorClassClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassRateLimit, true},
		{ErrorClassServer, true},
		{ErrorClassNetwork, true},
		{ErrorClassDecode, true},
		{ErrorClassClient, false},
		{ErrorClassNotFound, false},
		{ErrorClass("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := shouldRetry(tt.class); got != tt.want {
				t.Errorf("shouldRetry(%s) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(errors.New("x")) {
		t.Error("plain error should not be terminal")
	}
	if IsTerminal(&APIError{ErrorClass: ErrorClassServer}) {
		t.Error("a single attempt error is not terminal")
	}
	if !IsTerminal(fmt.Errorf("ctx: %w", &FetchError{})) {
		t.Error("wrapped *FetchError should be terminal")
	}
}
