package browsersession

import "errors"

var (
	// ErrSecretKeyRequired is an exported constant or variable used by the session manager.
	ErrSecretKeyRequired = errors.New("secret key required")
	// ErrRedisRequired is an exported constant or variable used by the session manager.
	ErrRedisRequired = errors.New("store mode requires a redis client")
	// ErrCookieTooLarge is an exported constant or variable used by the session manager.
	ErrCookieTooLarge = errors.New("session cookie exceeds size limit")
	// ErrSessionSaveFailed is an exported constant or variable used by the session manager.
	ErrSessionSaveFailed = errors.New("session save failed")
	// ErrBuilderUsed is an exported constant or variable used by the session manager.
	ErrBuilderUsed = errors.New("builder already used")
)
