package httpinfra

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"garagelink.app/client/internal/core/domain"
)

const maxErrorBody = 1 << 20

// errorBody covers both shapes the backend uses for errors: a flat
// {code, message} object and one nested under "error".
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads and closes the body of a non-2xx response and
// returns it as an *domain.APIError. The body is capped at 1 MB.
func ParseResponseError(resp *http.Response) *domain.APIError {
	defer func() { _ = resp.Body.Close() }()

	apiErr := &domain.APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != nil:
			apiErr.Code, apiErr.Message = body.Error.Code, body.Error.Message
		case body.Code != "" || body.Message != "":
			apiErr.Code, apiErr.Message = body.Code, body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
