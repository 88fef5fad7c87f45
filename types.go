package blog

import (
	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package,
// args are key/value pairs. glog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TokenConfig holds token service options
type TokenConfig interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
}

// UploadConfig holds upload options
type UploadConfig interface {
	GetMediaDir() string
	GetMaxUploadMB() int
	GetAllowedTypes() []string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

func ensureLogger(l Logger) Logger {
	if l == nil {
		return glog.Nop()
	}
	return l
}
