package protocol

import (
	"net/url"
	"strings"
)

// EventSourcePath is the base path shared by the push channel (GET) and the
// subscription endpoint (PUT).
const EventSourcePath = "/api/zmq/eventsource/"

// SubscriptionRequest replaces the full topic set of a session.
type SubscriptionRequest struct {
	Topics []string `json:"topics"`
}

// ServerResult is the success body of the subscription endpoint.
type ServerResult struct {
	Result string `json:"result"`
}

// ServerError is the error body the server sends on 4xx.
type ServerError struct {
	Error string `json:"error"`
}

type Error struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// SubscriptionResult is what a subscription attempt looks like to the user:
// either the server's acknowledgement or an error, never both.
type SubscriptionResult struct {
	SessionID string   `json:"session_id"`
	Topics    []string `json:"topics"`
	Result    string   `json:"result,omitempty"`
	Error     *Error   `json:"error,omitempty"`
}

func (r SubscriptionResult) Ok() bool {
	return r.Error == nil
}

// EventSourceURL joins base and the session path. base may carry a path
// prefix; the query and fragment are dropped.
func EventSourceURL(base string, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/") + EventSourcePath + url.PathEscape(sessionID)
	return u.String(), nil
}
