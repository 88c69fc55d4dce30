package instagram

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/socialflowhq/socialflow/internal/models"
)

// Graph API error codes that signal throttling.
var rateLimitCodes = map[int]struct{}{
	4:   {}, // application request limit
	17:  {}, // user request limit
	32:  {}, // page request limit
	613: {}, // custom rate limit
}

// APIError is a classified Graph API failure. The raw provider body never
// crosses this package boundary.
type APIError struct {
	StatusCode int
	Code       int
	Subcode    int
	Message    string
	Transient  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram api error (code %d, http %d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if _, ok := rateLimitCodes[e.Code]; ok {
		return models.ErrRateLimited
	}
	return nil
}

// errorResponse mirrors the Graph API error envelope.
type errorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

// IsTransient reports whether a failure is worth retrying: server-side Graph
// errors, explicitly transient provider errors, and network timeouts.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
