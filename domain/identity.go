package domain

import "time"

// CachedIdentity is the locally persisted shadow of the last known identity.
// It is an optimistic hint only; the backend stays the authority.
type CachedIdentity struct {
	User          *User     `json:"user,omitempty"`
	Token         string    `json:"-"`
	LastAuthAt    time.Time `json:"last_auth_at"`
	LastRefreshAt time.Time `json:"last_refresh_at"`
}

// HasToken reports whether a bearer token is cached.
func (c *CachedIdentity) HasToken() bool {
	return c != nil && c.Token != ""
}

// IsEmpty reports whether nothing is cached.
func (c *CachedIdentity) IsEmpty() bool {
	return c == nil || (c.User == nil && c.Token == "" && c.LastAuthAt.IsZero())
}

// FreshestAuth returns the most recent of the last auth and last refresh times.
func (c *CachedIdentity) FreshestAuth() time.Time {
	if c == nil {
		return time.Time{}
	}
	if c.LastRefreshAt.After(c.LastAuthAt) {
		return c.LastRefreshAt
	}
	return c.LastAuthAt
}
