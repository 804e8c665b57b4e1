package driven

import "context"

// PreferenceStore defines the driven port for the optional key/value
// persistence hook. It remembers session-scoped preferences and is not needed
// for the correctness of the comment engine.
type PreferenceStore interface {
	// Get returns ("", nil) when no value exists for key.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
