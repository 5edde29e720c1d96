package commerce

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when a surface is called without the
// credentials it needs.
var ErrNotConfigured = errors.New("commerce: surface not configured")

// UpstreamError reports a failed call to the commerce platform: a non-2xx
// status, a transport failure (Status 0), a GraphQL error envelope, or a
// response that did not match the expected shape.
type UpstreamError struct {
	Surface string
	Status  int
	Body    string
	Err     error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "commerce %s", e.Surface)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", truncate(e.Body, 512))
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type GraphQLError struct {
	Message string `json:"message"`
}

type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// UserError is a validation message returned inside a mutation payload
// (userErrors / customerUserErrors).
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

type UserErrors []UserError

func (e UserErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ue := range e {
		if len(ue.Field) > 0 {
			msgs[i] = strings.Join(ue.Field, ".") + ": " + ue.Message
		} else {
			msgs[i] = ue.Message
		}
	}
	return strings.Join(msgs, "; ")
}

// Err returns e as an error, or nil when there are no messages.
func (e UserErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
