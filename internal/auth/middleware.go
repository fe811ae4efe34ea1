package auth

import (
	"context"

	"github.com/sorenmh/pushdash/internal/link"
)

// HeaderAuthorization carries the bearer token on requests and the rotated
// token on responses
const HeaderAuthorization = "Authorization"

// Middleware attaches the session token to every request of an operation
// and persists a rotated token returned by any of its responses
func Middleware(s *Session) link.Middleware {
	return func(next link.Handler) link.Handler {
		return link.HandlerFunc(func(ctx context.Context, op *link.Operation) (*link.Result, error) {
			op.Header.Set("Accept", "application/json")
			op.Header.Set(HeaderAuthorization, bearerPrefix+s.Token())

			res, err := next.Execute(ctx, op)

			if token, ok := RotatedToken(op.Responses()); ok {
				if serr := s.SetToken(ctx, token); serr != nil {
					s.logger.Warn("failed to persist rotated token", "error", serr)
				}
			}
			return res, err
		})
	}
}

// RotatedToken returns the Authorization header of the first response that
// carries one
func RotatedToken(responses []link.Response) (string, bool) {
	for _, r := range responses {
		if v := r.Header.Get(HeaderAuthorization); v != "" {
			return v, true
		}
	}
	return "", false
}
