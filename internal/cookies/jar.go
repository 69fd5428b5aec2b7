package cookies

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// CSRFCookieName is the readable cookie the backend uses for CSRF tokens.
const CSRFCookieName = "csrftoken"

// Store is the document.cookie view of the API origin.
type Store interface {
	Get(name string) (string, bool)
	Set(c *http.Cookie)
	Delete(name string)
}

// StoredCookie is the persisted form of a cookie.
type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
	HostOnly bool      `json:"host_only,omitempty"`
}

// Jar stores cookies for the API origin. Matching follows net/http/cookiejar;
// the jar additionally remembers attributes so cookies can be listed,
// deleted across path/domain variants and persisted between runs.
type Jar struct {
	origin  *url.URL
	blocked bool
	now     func() time.Time

	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]StoredCookie
}

// Option configures a Jar.
type Option func(*Jar)

// WithBlocked makes every write a silent no-op, like a browser that refuses
// to persist cookies.
func WithBlocked() Option {
	return func(j *Jar) { j.blocked = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) {
		if now != nil {
			j.now = now
		}
	}
}

// NewJar creates a jar for the given API base URL.
func NewJar(origin string, opts ...Option) (*Jar, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if u.Path == "" {
		u.Path = "/"
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &Jar{
		origin:  u,
		now:     time.Now,
		jar:     inner,
		entries: make(map[string]StoredCookie),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Origin returns the URL the jar scopes its cookies to.
func (j *Jar) Origin() *url.URL {
	u := *j.origin
	return &u
}

// Blocked reports whether the jar drops writes.
func (j *Jar) Blocked() bool { return j.blocked }

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if j.blocked || len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	now := j.now()
	for _, c := range cookies {
		entry := j.entryFor(u, c, now)
		if host := strings.ToLower(u.Hostname()); entry.Domain != host && !strings.HasSuffix(host, "."+entry.Domain) {
			// rejected by cookiejar as well
			continue
		}
		key := entryKey(entry.Name, entry.Domain, entry.Path)
		if c.MaxAge < 0 || (!entry.Expires.IsZero() && !entry.Expires.After(now)) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = entry
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if j.blocked {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Get reads a cookie visible to the API origin.
func (j *Jar) Get(name string) (string, bool) {
	for _, c := range j.Cookies(j.origin) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Set writes a cookie for the API origin. An empty path defaults to "/".
func (j *Jar) Set(c *http.Cookie) {
	if c == nil {
		return
	}
	cp := *c
	if cp.Path == "" {
		cp.Path = "/"
	}
	j.SetCookies(j.origin, []*http.Cookie{&cp})
}

// Delete expires the named cookie under every path and domain variant it
// may have been written with.
func (j *Jar) Delete(name string) {
	if j.blocked || name == "" {
		return
	}
	host := strings.ToLower(j.origin.Hostname())
	paths := j.pathsFor(name)
	domains := []string{"", host}
	if !isIP(host) && strings.Contains(host, ".") {
		domains = append(domains, "."+host)
	}
	var expired []*http.Cookie
	for _, p := range paths {
		for _, d := range domains {
			expired = append(expired, &http.Cookie{
				Name:    name,
				Path:    p,
				Domain:  d,
				MaxAge:  -1,
				Expires: time.Unix(0, 0),
			})
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	// cookiejar rejects each invalid variant on its own, valid ones still apply.
	j.jar.SetCookies(j.origin, expired)
	for key, e := range j.entries {
		if e.Name == name {
			delete(j.entries, key)
		}
	}
}

// Names lists the names of live cookies.
func (j *Jar) Names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	seen := make(map[string]struct{})
	var names []string
	for _, e := range j.entries {
		if !e.Expires.IsZero() && !e.Expires.After(now) {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// ClearNonEssential deletes every cookie except the ones named in keep and
// returns how many cookie names were removed.
func (j *Jar) ClearNonEssential(keep ...string) int {
	return j.clear(true, keep)
}

// ClearScriptVisible deletes what a page script could delete: HttpOnly
// cookies and the names in keep survive.
func (j *Jar) ClearScriptVisible(keep ...string) int {
	return j.clear(false, keep)
}

func (j *Jar) clear(includeHTTPOnly bool, keep []string) int {
	skip := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		skip[k] = struct{}{}
	}
	if !includeHTTPOnly {
		j.mu.Lock()
		httpOnly := make(map[string]bool)
		for _, e := range j.entries {
			if prev, seen := httpOnly[e.Name]; seen {
				httpOnly[e.Name] = prev && e.HTTPOnly
				continue
			}
			httpOnly[e.Name] = e.HTTPOnly
		}
		j.mu.Unlock()
		for name, only := range httpOnly {
			if only {
				skip[name] = struct{}{}
			}
		}
	}
	removed := 0
	for _, name := range j.Names() {
		if _, ok := skip[name]; ok {
			continue
		}
		j.Delete(name)
		removed++
	}
	return removed
}

// Export returns the live cookies for persistence.
func (j *Jar) Export() []StoredCookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	out := make([]StoredCookie, 0, len(j.entries))
	for _, e := range j.entries {
		if !e.Expires.IsZero() && !e.Expires.After(now) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool {
		return entryKey(out[a].Name, out[a].Domain, out[a].Path) < entryKey(out[b].Name, out[b].Domain, out[b].Path)
	})
	return out
}

// Import restores cookies produced by Export. Expired entries are skipped.
func (j *Jar) Import(stored []StoredCookie) {
	now := j.now()
	for _, s := range stored {
		if !s.Expires.IsZero() && !s.Expires.After(now) {
			continue
		}
		u := j.Origin()
		u.Host = s.Domain
		if port := j.origin.Port(); port != "" {
			u.Host = s.Domain + ":" + port
		}
		c := &http.Cookie{
			Name:     s.Name,
			Value:    s.Value,
			Path:     s.Path,
			Expires:  s.Expires,
			Secure:   s.Secure,
			HttpOnly: s.HTTPOnly,
		}
		if !s.HostOnly {
			c.Domain = s.Domain
		}
		j.SetCookies(u, []*http.Cookie{c})
	}
}

func (j *Jar) entryFor(u *url.URL, c *http.Cookie, now time.Time) StoredCookie {
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
	hostOnly := domain == ""
	if hostOnly {
		domain = host
	}
	p := c.Path
	if p == "" || p[0] != '/' {
		p = defaultPath(u.Path)
	}
	expires := c.Expires
	if c.MaxAge > 0 {
		expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	return StoredCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   domain,
		Path:     p,
		Expires:  expires,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		HostOnly: hostOnly,
	}
}

func (j *Jar) pathsFor(name string) []string {
	set := map[string]struct{}{"/": {}}
	for p := j.origin.Path; p != "/" && p != "." && p != ""; p = path.Dir(p) {
		set[strings.TrimSuffix(p, "/")] = struct{}{}
		set[p] = struct{}{}
	}
	j.mu.Lock()
	for _, e := range j.entries {
		if e.Name == name {
			set[e.Path] = struct{}{}
		}
	}
	j.mu.Unlock()
	delete(set, "")
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func entryKey(name, domain, p string) string {
	return name + ";" + domain + ";" + p
}

// defaultPath follows RFC 6265 section 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func isIP(host string) bool {
	return net.ParseIP(host) != nil
}

var _ http.CookieJar = (*Jar)(nil)
var _ Store = (*Jar)(nil)
