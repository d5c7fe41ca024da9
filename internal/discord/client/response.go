package client

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
)

// File is one attachment of a multipart request. Reader is rewound before
// every attempt so a retried upload sends the whole file again.
type File struct {
	Name   string
	Reader io.ReadSeeker
}

// Call carries the optional parts of one request.
type Call struct {
	// Body is encoded as JSON when non-nil. With Files or Form set it is
	// sent as the payload_json form field instead.
	Body any
	// Files are uploaded as multipart/form-data.
	Files []File
	// Form adds plain fields to a multipart body.
	Form map[string]string
	// Query is appended to the URL.
	Query url.Values
	// Context sets the X-Context-Properties header.
	Context *ContextProperties
	// Reason sets the X-Audit-Log-Reason header.
	Reason string
}

func (c *Call) multipart() bool {
	return len(c.Files) > 0 || len(c.Form) > 0
}

// Response is a completed request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// IsJSON reports whether the server declared a JSON body.
func (r *Response) IsJSON() bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}
