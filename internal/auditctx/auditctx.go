// Package auditctx carries request metadata from the HTTP layer down to the
// audit log without threading it through every service signature.
package auditctx

import "context"

// Request captures where a request came from.
type Request struct {
	IPAddress string
	UserAgent string
}

type requestContextKey struct{}

// WithRequest returns a derived context carrying req.
func WithRequest(ctx context.Context, req Request) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestContextKey{}, req)
}

// FromContext extracts request metadata stored by WithRequest.
func FromContext(ctx context.Context) (Request, bool) {
	if ctx == nil {
		return Request{}, false
	}
	req, ok := ctx.Value(requestContextKey{}).(Request)
	return req, ok
}
