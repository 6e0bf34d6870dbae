package llm

import "dev.manna.backend/internal/llm/providers/openrouter"

// Provider failures surface under gateway names so callers never import the
// provider package directly.
var (
	// ErrModelAuth is returned when the provider rejects the API key.
	ErrModelAuth = openrouter.ErrAuth

	// ErrModelConnection is returned when the provider cannot be reached.
	ErrModelConnection = openrouter.ErrConnection

	// ErrModelRateLimited is returned when the provider reports rate limiting.
	ErrModelRateLimited = openrouter.ErrRateLimited

	// ErrModelAPI is returned for any other provider-side failure.
	ErrModelAPI = openrouter.ErrAPI
)
