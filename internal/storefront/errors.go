package storefront

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a storefront failure.
type Kind string

const (
	// KindValidation marks a call rejected before any network I/O.
	KindValidation Kind = "validation"
	// KindHTTP marks a non-2xx response.
	KindHTTP Kind = "http"
	// KindNoResponse marks a request that was sent but got no response, including timeouts.
	KindNoResponse Kind = "no_response"
	// KindRequest marks a request that could not be built or sent.
	KindRequest Kind = "request"
	// KindDecode marks a 2xx response whose body could not be decoded.
	KindDecode Kind = "decode"
)

// User-facing messages.
const (
	MessageUnauthorized = "Authorization failed. Try restarting the app."
	MessageNotFound     = "The requested resource was not found."
	MessageNoResponse   = "Could not reach the server. Check your internet connection."
	MessageGeneric      = "A network or server error occurred."
)

// ErrNoBaseURL is wrapped by request errors when the client has no base URL.
var ErrNoBaseURL = errors.New("storefront: API base URL is not configured")

// Error is the single normalised failure returned by every Client call.
// Message is suitable for direct display. Body is the server's error body when
// it sent one, otherwise {"detail": Message}.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Body    json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("storefront")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the display message for err, falling back to the generic text.
func Message(err error) string {
	var sfErr *Error
	if errors.As(err, &sfErr) && sfErr.Message != "" {
		return sfErr.Message
	}
	return MessageGeneric
}

// IsKind reports whether err is a storefront error of the given kind.
func IsKind(err error, kind Kind) bool {
	var sfErr *Error
	return errors.As(err, &sfErr) && sfErr.Kind == kind
}

func validationError(op, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Message: message,
		Body:    fallbackBody(message),
	}
}

// responseError normalises a non-2xx response.
func responseError(op string, status int, body []byte) *Error {
	serverBody := jsonBody(body)

	message := serverMessage(serverBody)
	switch {
	case message != "":
	case status == http.StatusUnauthorized:
		message = MessageUnauthorized
	case status == http.StatusNotFound:
		message = MessageNotFound
	default:
		message = MessageGeneric
	}

	if serverBody == nil {
		serverBody = fallbackBody(message)
	}
	return &Error{
		Kind:    KindHTTP,
		Op:      op,
		Message: message,
		Status:  status,
		Body:    serverBody,
	}
}

func transportError(op string, kind Kind, status int, err error) *Error {
	message := MessageGeneric
	if kind == KindNoResponse {
		message = MessageNoResponse
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Status:  status,
		Body:    fallbackBody(message),
		Err:     err,
	}
}

func fallbackBody(message string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"detail": message})
	return data
}

// jsonBody returns body when it is a non-empty JSON document.
func jsonBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil
	}
	switch string(trimmed) {
	case "null", `""`, "false", "0":
		return nil
	}
	return json.RawMessage(trimmed)
}

// serverMessage extracts "detail", then "message", from a JSON object body.
// A list-valued detail (field validation failures) is joined from its "msg" entries.
func serverMessage(body json.RawMessage) string {
	if body == nil {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if strings.TrimSpace(text) != "" {
				return text
			}
			continue
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &items); err == nil {
			var msgs []string
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}
