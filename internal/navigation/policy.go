package navigation

import (
	"net/url"
	"strings"
)

// Login redirect reasons carried in the message query parameter.
const (
	MessageSessionExpired = "session_expired"
	MessageLoginRequired  = "login_required"
)

// Policy classifies client routes.
type Policy struct {
	loginRoute    string
	registerRoute string
	public        []string
}

// NewPolicy builds a route policy. Public routes match themselves and
// everything below them; "/" matches only the root.
func NewPolicy(loginRoute, registerRoute string, public []string) *Policy {
	p := &Policy{
		loginRoute:    normalize(loginRoute),
		registerRoute: normalize(registerRoute),
	}
	if p.loginRoute == "/" {
		p.loginRoute = "/login"
	}
	if p.registerRoute == "/" {
		p.registerRoute = "/register"
	}
	for _, r := range public {
		p.public = append(p.public, normalize(r))
	}
	return p
}

// LoginRoute returns the login page path.
func (p *Policy) LoginRoute() string { return p.loginRoute }

// IsAuthRoute reports whether path is the login or registration page. These
// routes never trigger verification.
func (p *Policy) IsAuthRoute(path string) bool {
	path = normalize(path)
	return matches(path, p.loginRoute) || matches(path, p.registerRoute)
}

// IsPublic reports whether path can be viewed without authentication. Auth
// routes are public.
func (p *Policy) IsPublic(path string) bool {
	path = normalize(path)
	if p.IsAuthRoute(path) {
		return true
	}
	for _, r := range p.public {
		if r == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if matches(path, r) {
			return true
		}
	}
	return false
}

// LoginURL returns the login page URL carrying the redirect reason and the
// page to come back to.
func (p *Policy) LoginURL(message, next string) string {
	q := url.Values{}
	if message != "" {
		q.Set("message", message)
	}
	if path := normalize(next); path != "/" && !p.IsAuthRoute(path) {
		q.Set("next", path+rawQuery(next))
	}
	if len(q) == 0 {
		return p.loginRoute
	}
	return p.loginRoute + "?" + q.Encode()
}

func matches(path, route string) bool {
	return path == route || strings.HasPrefix(path, strings.TrimSuffix(route, "/")+"/")
}

// rawQuery returns the "?query" part of target without its fragment.
func rawQuery(target string) string {
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	i := strings.IndexByte(target, '?')
	if i < 0 || i == len(target)-1 {
		return ""
	}
	return target[i:]
}

// normalize strips query, fragment and trailing slash.
func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
