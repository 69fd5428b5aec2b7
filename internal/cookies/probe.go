package cookies

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/campus/repository"
)

const (
	probeCookiePrefix = "campus_probe_"
	probeStorageKey   = "campus.probe"
	probeLifetime     = 10 * time.Second
)

// Probe reports whether cookies written for the API origin are read back
// intact. Storage is touched first: a client whose local storage refuses
// access is treated as cookie-incapable. Probe never panics; any failure is
// a negative result.
func Probe(ctx context.Context, store Store, storage repository.LocalStorage) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if store == nil {
		return false
	}
	if storage != nil && !storageWritable(ctx, storage) {
		return false
	}

	name := probeCookiePrefix + uuid.NewString()
	value := uuid.NewString()
	store.Set(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(probeLifetime),
		SameSite: http.SameSiteLaxMode,
	})
	got, found := store.Get(name)
	store.Delete(name)

	return found && got == value
}

func storageWritable(ctx context.Context, storage repository.LocalStorage) bool {
	value := uuid.NewString()
	if err := storage.Set(ctx, probeStorageKey, value); err != nil {
		return false
	}
	got, err := storage.Get(ctx, probeStorageKey)
	_ = storage.Remove(ctx, probeStorageKey)
	return err == nil && got == value
}
