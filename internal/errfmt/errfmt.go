// Package errfmt turns transport errors into messages fit for display.
package errfmt

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/tidwall/gjson"

	"github.com/fairyhunter13/product-catalog-store/internal/gateway"
)

// bodyMessagePaths are tried in order against a JSON error body.
var bodyMessagePaths = []string{"error.message", "message", "error", "details"}

// Formatter formats catalog gateway errors.
type Formatter struct{}

// FormatError returns a user-facing message for err. A nil err yields "".
func (Formatter) FormatError(err error) string { return FormatError(err) }

// FormatError returns a user-facing message for err. A nil err yields "".
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "An error occurred: request timed out"
	case errors.Is(err, context.Canceled):
		return "An error occurred: request canceled"
	}
	var terr *gateway.TransportError
	if errors.As(err, &terr) && terr.Unsuccessful() {
		msg := bodyMessage(terr.Body)
		if msg == "" {
			msg = terr.StatusText()
		}
		return fmt.Sprintf("Server returned code: %d, error message is: %s", terr.StatusCode, msg)
	}
	if terr != nil && terr.Err != nil {
		return "An error occurred: " + terr.Err.Error()
	}
	return "An error occurred: " + err.Error()
}

func bodyMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, p := range bodyMessagePaths {
		if r := gjson.GetBytes(body, p); r.Exists() && r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
