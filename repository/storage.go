package repository

import (
	"context"
)

// Keys persisted by the client, mirroring what a browser keeps in localStorage.
const (
	KeyUser        = "campus.user"
	KeyToken       = "campus.token"
	KeyLastAuth    = "campus.last_auth"
	KeyLastRefresh = "campus.last_refresh"
	KeyOpGuard     = "campus.op_guard"
	KeyLastPage    = "campus.last_page"
	KeyCookies     = "campus.cookies"
)

// IdentityKeys lists the keys that make up the cached identity.
var IdentityKeys = []string{KeyUser, KeyToken, KeyLastAuth, KeyLastRefresh}

// LocalStorage is a string key/value store. Get returns domain.ErrKeyNotFound
// for missing keys.
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
