package cache

import (
	"net/http"
	"strconv"
)

// Values of the X-Cache response header.
const (
	HeaderCache = "X-Cache"
	StatusHit   = "HIT"
	StatusMiss  = "MISS"
)

// WriteEntry writes entry as an HTTP response, tagging it with the given
// X-Cache status and its age in seconds.
func WriteEntry(w http.ResponseWriter, entry *Entry, cacheStatus string) error {
	contentType := entry.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set(HeaderCache, cacheStatus)
	if cacheStatus == StatusHit {
		h.Set("Age", strconv.Itoa(int(entry.Age().Seconds())))
	}
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(entry.TTL().Seconds())))

	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	_, err := w.Write(entry.Data)
	return err
}
