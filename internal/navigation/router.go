package navigation

import (
	"sync"
	"time"
)

// Event describes a route change.
type Event struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Hard bool      `json:"hard"`
	At   time.Time `json:"at"`
}

// Listener receives route changes. Listeners run synchronously on the
// navigating goroutine and must not block.
type Listener func(Event)

// Navigator is what the session manager needs from the router.
type Navigator interface {
	Current() string
	Redirect(target string)
}

// Router tracks the current client route and notifies subscribers. The UI
// layer calls Navigate on every client-side route change; Redirect performs
// a hard navigation.
type Router struct {
	mu        sync.RWMutex
	current   string
	redirects []string
	listeners map[int]Listener
	nextID    int
}

// NewRouter starts at the given route.
func NewRouter(initial string) *Router {
	if initial == "" {
		initial = "/"
	}
	return &Router{current: initial, listeners: make(map[int]Listener)}
}

// Current returns the current route, including its query string.
func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe registers a listener and returns a function that removes it.
func (r *Router) Subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// Navigate performs a client-side route change.
func (r *Router) Navigate(to string) {
	r.move(to, false)
}

// Redirect performs a hard navigation (full page load in a browser).
func (r *Router) Redirect(target string) {
	r.move(target, true)
}

// Redirects returns the hard navigations performed so far.
func (r *Router) Redirects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.redirects...)
}

func (r *Router) move(to string, hard bool) {
	if to == "" {
		to = "/"
	}
	r.mu.Lock()
	ev := Event{From: r.current, To: to, Hard: hard, At: time.Now()}
	r.current = to
	if hard {
		r.redirects = append(r.redirects, to)
	}
	listeners := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

var _ Navigator = (*Router)(nil)
