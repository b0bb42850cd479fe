package keyauth

import (
	"context"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/service"
)

// Client represents the public interface for key possession logins
type Client interface {
	// CreateChallenge issues a challenge. sessionID is only used by
	// session-bound challenge stores.
	CreateChallenge(ctx context.Context, sessionID string) (core.IssuedChallenge, error)

	// Login verifies the signed challenge and returns the verified identity
	Login(ctx context.Context, req service.LoginRequest) (core.AuthResult, error)
}

var _ Client = (*service.AuthService)(nil)
