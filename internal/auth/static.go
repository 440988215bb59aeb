package auth

import "context"

// StaticVerifier accepts any non-empty token as a fixed identity. It is
// meant for local development with auth disabled.
type StaticVerifier struct {
	Identity Identity
}

func (s StaticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	id := s.Identity
	return &id, nil
}
