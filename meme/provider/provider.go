// Package provider adapts the third-party services the bot depends on:
// imgflip for meme and template search and template captioning, OpenAI
// for image generation, plus plain file downloads.
//
// Every call is a single request with no retry. Failures are classified
// through the sentinel errors below so callers can branch with errors.Is.
package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrUnavailable marks transport failures and unexpected responses.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrContentRejected marks prompts refused by a content policy.
	ErrContentRejected = errors.New("content rejected")
	// ErrNoResults marks an empty search.
	ErrNoResults = errors.New("no results")
)

const maxErrorBody = 512

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s: %w: status %d: %s", op, ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
}

// ResolveURL turns the protocol-relative and root-relative image references
// found in provider markup into absolute URLs. Absolute URLs pass through.
func ResolveURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "http://" + raw[2:]
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "/"):
		return strings.TrimRight(base, "/") + raw
	default:
		return strings.TrimRight(base, "/") + "/" + raw
	}
}
