package gateway

import (
	"fmt"
	"net/http"

	"github.com/fairyhunter13/product-catalog-store/internal/model"
)

// TransportError describes a failed call to the catalog backend: a non-2xx
// answer, a connection or timeout failure, or an undecodable payload.
type TransportError struct {
	Method string
	URL    string
	// StatusCode is 0 when no response was received.
	StatusCode int
	Status     string
	// Body holds at most maxErrorBody bytes of a non-2xx response.
	Body []byte
	Err  error
}

func (e *TransportError) Error() string {
	if e.Unsuccessful() {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes a 404 answer match model.ErrNotFound.
func (e *TransportError) Is(target error) bool {
	return target == model.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Unsuccessful reports whether the backend answered with a non-2xx status.
func (e *TransportError) Unsuccessful() bool {
	return e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299)
}

// StatusText is the reason phrase of the response status.
func (e *TransportError) StatusText() string {
	if t := http.StatusText(e.StatusCode); t != "" {
		return t
	}
	return e.Status
}
