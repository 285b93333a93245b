package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matthewbaird/proforma/internal/fielderr"
)

// APIError is a failure envelope returned by the property API:
// {success:false, message, errorCode, statusCode, details}. Details may
// carry per-field violation text under details.message, either one
// string or an array of strings.
type APIError struct {
	ErrorCode  string
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d (%s)", e.StatusCode, e.ErrorCode)
}

// DetailMessages returns the violation strings from details.message.
func (e *APIError) DetailMessages() []string {
	if len(e.Details) == 0 {
		return nil
	}
	var details struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(e.Details, &details); err != nil || len(details.Message) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(details.Message, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(details.Message, &many); err == nil {
		return many
	}
	return nil
}

// ErrorInfo is the result of best-effort error extraction: a display
// message plus any field-level violations resolved to dotted paths.
type ErrorInfo struct {
	Message     string
	FieldErrors map[string]string
}

// ExtractErrorInfo pulls a display message and field errors out of any
// error. Backend rejections are scanned message by message; other errors
// surface their text with no field mapping.
func ExtractErrorInfo(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{FieldErrors: map[string]string{}}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		messages := apiErr.DetailMessages()
		if len(messages) == 0 && apiErr.Message != "" {
			messages = []string{apiErr.Message}
		}
		return ErrorInfo{
			Message:     apiErr.Error(),
			FieldErrors: fielderr.FromBackend(messages),
		}
	}
	return ErrorInfo{Message: err.Error(), FieldErrors: map[string]string{}}
}
