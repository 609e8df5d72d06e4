package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// FailureKind buckets completion failures the way the conversation layer
// renders them.
type FailureKind string

const (
	// FailureProvider means the remote service returned a structured error
	// payload (or a well-formed response with no usable content).
	FailureProvider FailureKind = "PROVIDER"
	// FailureHTTP means a non-2xx status with no parseable provider error.
	FailureHTTP FailureKind = "HTTP"
	// FailureTransport means the call never produced an HTTP response:
	// timeout, connectivity, or a response that could not be decoded.
	FailureTransport FailureKind = "TRANSPORT"
)

// Failure is the total result type of the completion boundary: every error
// path of Complete resolves to one of these, never a panic or a raw error
// from the transport stack.
type Failure struct {
	Kind       FailureKind
	StatusCode int    // HTTP status, when one was received
	Message    string // provider-reported or transport-level description
	Type       string // provider error type, when the body parsed
	Code       string // provider error code, when the body parsed
}

func (f *Failure) Error() string {
	switch f.Kind {
	case FailureProvider:
		return fmt.Sprintf("provider error: %s (type: %s, code: %s)", f.Message, f.Type, f.Code)
	case FailureHTTP:
		return fmt.Sprintf("http error: status %d: %s", f.StatusCode, f.Message)
	default:
		return fmt.Sprintf("transport error: %s", f.Message)
	}
}

// AsFailure extracts a *Failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Classify folds any error coming out of the underlying client into the
// failure taxonomy.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprintf("%v", apiErr.Code)
		}
		return &Failure{
			Kind:       FailureProvider,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Type:       apiErr.Type,
			Code:       code,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Failure{
			Kind:       FailureHTTP,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTransport, Message: "request timed out"}
	}

	return &Failure{Kind: FailureTransport, Message: err.Error()}
}
