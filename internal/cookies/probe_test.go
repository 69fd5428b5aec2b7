package cookies

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/campus/repository/memory"
)

type panickingStore struct{}

func (panickingStore) Get(string) (string, bool) { panic("document.cookie unavailable") }
func (panickingStore) Set(*http.Cookie)          { panic("document.cookie unavailable") }
func (panickingStore) Delete(string)             {}

// echoStore reads back a different value than was written.
type echoStore struct{ last string }

func (e *echoStore) Get(string) (string, bool) { return e.last + "-mangled", e.last != "" }
func (e *echoStore) Set(c *http.Cookie)        { e.last = c.Value }
func (e *echoStore) Delete(string)             {}

func TestProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("normal environment", func(t *testing.T) {
		j := newTestJar(t)
		assert.True(t, Probe(ctx, j, memory.NewStorage()))
		assert.Empty(t, j.Names(), "probe cookie must be removed")
	})

	t.Run("cookie writes silently ignored", func(t *testing.T) {
		assert.False(t, Probe(ctx, newTestJar(t, WithBlocked()), memory.NewStorage()))
	})

	t.Run("value not read back exactly", func(t *testing.T) {
		assert.False(t, Probe(ctx, &echoStore{}, nil))
	})

	t.Run("storage returns errors", func(t *testing.T) {
		assert.False(t, Probe(ctx, newTestJar(t), memory.Blocked{}))
	})

	t.Run("storage panics", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.False(t, Probe(ctx, newTestJar(t), memory.Blocked{Panic: true}))
		})
	})

	t.Run("cookie store panics", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.False(t, Probe(ctx, panickingStore{}, nil))
		})
	})

	t.Run("nil store", func(t *testing.T) {
		assert.False(t, Probe(ctx, nil, nil))
	})

	t.Run("storage probe key cleaned up", func(t *testing.T) {
		storage := memory.NewStorage()
		Probe(ctx, newTestJar(t), storage)
		assert.Zero(t, storage.Len())
	})
}
