// Package hostenv resolves the user and host strings recorded on every
// audit entry. Both are opaque, best-effort strings — a user lookup
// failure in a restricted sandbox falls back to an environment variable,
// and a host lookup failure to "unknown", rather than aborting, the same
// tolerant pattern the teacher's session manager
// uses around os.Hostname(). Both are resolved once per process and
// cached, since neither can change for the life of a running vault.
package hostenv

import (
	"os"
	"os/user"
	"sync"
)

var (
	userOnce  sync.Once
	userValue string

	hostOnce  sync.Once
	hostValue string
)

// User returns the current user's username, falling back to $USER then
// $LOGNAME then "unknown" if the platform user lookup is unavailable.
func User() string {
	userOnce.Do(func() {
		userValue = resolveUser()
	})
	return userValue
}

func resolveUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	if v := os.Getenv("LOGNAME"); v != "" {
		return v
	}
	return "unknown"
}

// Host returns the machine's hostname, falling back to "unknown" if it
// can't be determined.
func Host() string {
	hostOnce.Do(func() {
		hostValue = resolveHost()
	})
	return hostValue
}

func resolveHost() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown"
}
