package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type ErrorKind int

const (
	// ConnectionFailed means the backend could not be reached at all.
	ConnectionFailed ErrorKind = iota + 1
	// RequestFailed means the backend answered with a non-200 status.
	RequestFailed
	Timeout
	// StreamInterrupted means a streamed body ended before the server closed it cleanly.
	StreamInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "connection failed"
	case RequestFailed:
		return "request failed"
	case Timeout:
		return "timeout"
	case StreamInterrupted:
		return "stream interrupted"
	default:
		return "unknown"
	}
}

var ErrEmptyDocument = errors.New("document is empty")

// Error is the only error type returned by the gateway.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == RequestFailed && e.StatusCode != 0:
		if e.Body == "" {
			return fmt.Sprintf("%s: %s (%d)", e.Op, e.Kind, e.StatusCode)
		}
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the gateway error kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind, true
	}
	return 0, false
}

func transportError(op string, err error) *Error {
	kind := ConnectionFailed
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = Timeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func statusError(op string, code int, contentType string, body []byte) *Error {
	return &Error{
		Kind:       RequestFailed,
		Op:         op,
		StatusCode: code,
		Body:       readableBody(contentType, body),
	}
}

const maxErrorBody = 500

// readableBody reduces an error response to something worth showing a user:
// the text of an HTML error page, the detail of a JSON error, or the raw text.
func readableBody(contentType string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	switch {
	case strings.Contains(contentType, "html") || strings.HasPrefix(strings.ToLower(text), "<!doctype html") || strings.HasPrefix(strings.ToLower(text), "<html"):
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
			if text == "" {
				text = strings.TrimSpace(doc.Find("title").Text())
			}
		}
	case strings.Contains(contentType, "json") || strings.HasPrefix(text, "{"):
		var payload struct {
			Detail json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
			var detail string
			if json.Unmarshal(payload.Detail, &detail) == nil {
				text = detail
			} else {
				text = string(payload.Detail)
			}
		}
	}

	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
