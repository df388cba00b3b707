package conversation

import (
	"errors"
	"fmt"

	"github.com/m3rciful/memebot/meme/provider"
)

// Kind classifies failures seen while handling an event.
type Kind string

const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindContentRejected     Kind = "content_rejected"
	KindNotFound            Kind = "not_found"
	KindMalformedSession    Kind = "malformed_session"
	KindRenderFailure       Kind = "render_failure"
	KindUnhandled           Kind = "unhandled"
	KindStoreNotReady       Kind = "store_not_ready"
)

// Error is a classified conversation failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("conversation %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("conversation %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the kind for log tagging.
func (e *Error) Code() string { return string(e.Kind) }

// ErrNotReady is returned by Engine.Handle before MarkReady.
var ErrNotReady = &Error{Kind: KindStoreNotReady, Op: "handle"}

// KindOf classifies err. Provider sentinels map onto their kinds.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, provider.ErrContentRejected):
		return KindContentRejected
	case errors.Is(err, provider.ErrNoResults):
		return KindNotFound
	case errors.Is(err, provider.ErrUnavailable):
		return KindProviderUnavailable
	}
	return KindUnhandled
}
