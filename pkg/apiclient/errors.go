package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type Outcome int

const (
	Success Outcome = iota
	RecoverableError
	FatalError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RecoverableError:
		return "recoverable_error"
	case FatalError:
		return "fatal_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// SuccessMarkers are message fragments the commerce API sends inside an
// error envelope when the operation actually succeeded.
var SuccessMarkers = []string{
	"order confirmed with cash on delivery",
}

// APIError is a failed upstream call. Status is 0 when no response arrived.
type APIError struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) IsUnauthorized() bool { return e.Status == http.StatusUnauthorized }
func (e *APIError) IsNotFound() bool     { return e.Status == http.StatusNotFound }
func (e *APIError) IsTransient() bool    { return e.Transient }

// Result is a classified upstream response. Marker is set when the reply
// carried a success marker.
type Result struct {
	Outcome Outcome
	Status  int
	Message string
	Marker  bool
	Data    json.RawMessage
	Body    []byte
	Err     *APIError
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Error   json.RawMessage `json:"error"`
}

// errorText flattens the error field, which is either a string or an
// object carrying a message.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func hasSuccessMarker(texts ...string) bool {
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, marker := range SuccessMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

func transientStatus(status int) bool {
	return status == 0 ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

// Classify maps a raw upstream reply onto Success, RecoverableError or
// FatalError. It is the only place success markers are recognised.
func Classify(status int, body []byte) Result {
	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			env = envelope{Message: strings.TrimSpace(string(body))}
		}
	}

	errText := errorText(env.Error)
	message := env.Message
	if message == "" {
		message = errText
	}

	res := Result{Status: status, Message: message, Data: env.Data, Body: body}

	if hasSuccessMarker(env.Message, errText) {
		res.Outcome = Success
		res.Marker = true
		return res
	}

	effective := status
	if status >= 200 && status < 300 && env.Status >= 400 && errText != "" {
		effective = env.Status
	}

	if effective >= 200 && effective < 300 {
		res.Outcome = Success
		return res
	}

	if message == "" {
		message = http.StatusText(effective)
		if message == "" {
			message = "upstream request failed"
		}
	}
	res.Status = effective
	res.Message = message
	res.Err = &APIError{Status: effective, Message: message, Transient: transientStatus(effective)}
	if res.Err.Transient {
		res.Outcome = RecoverableError
	} else {
		res.Outcome = FatalError
	}
	return res
}
