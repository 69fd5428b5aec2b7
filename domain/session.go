package domain

import "time"

// Status is the believed authentication status of the client.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusVerifying       Status = "verifying"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Strategy selects how the client proves its identity to the backend.
type Strategy string

const (
	StrategyCookie         Strategy = "cookie"
	StrategyBearerFallback Strategy = "bearer-fallback"
)

// Event drives Status transitions.
type Event string

const (
	EventCheckStarted Event = "check_started"
	EventVerified     Event = "verified"
	EventExhausted    Event = "exhausted"
	EventLogin        Event = "login"
	EventLogout       Event = "logout"
	EventRefreshed    Event = "refreshed"
)

var transitions = map[Status]map[Event]Status{
	StatusUnknown: {
		EventCheckStarted: StatusVerifying,
		EventVerified:     StatusAuthenticated,
		EventExhausted:    StatusUnauthenticated,
		EventLogin:        StatusAuthenticated,
		EventLogout:       StatusUnauthenticated,
	},
	StatusVerifying: {
		EventVerified:  StatusAuthenticated,
		EventExhausted: StatusUnauthenticated,
		EventLogin:     StatusAuthenticated,
		EventLogout:    StatusUnauthenticated,
	},
	// An authenticated client keeps its status while it re-verifies in the
	// background; only the outcome can demote it.
	StatusAuthenticated: {
		EventCheckStarted: StatusAuthenticated,
		EventVerified:     StatusAuthenticated,
		EventExhausted:    StatusUnauthenticated,
		EventLogin:        StatusAuthenticated,
		EventLogout:       StatusUnauthenticated,
		EventRefreshed:    StatusAuthenticated,
	},
	StatusUnauthenticated: {
		EventCheckStarted: StatusVerifying,
		EventVerified:     StatusAuthenticated,
		EventExhausted:    StatusUnauthenticated,
		EventLogin:        StatusAuthenticated,
		EventLogout:       StatusUnauthenticated,
	},
}

// Transition returns the status reached from `from` on `event`. The boolean
// is false when the event is not valid in that status.
func Transition(from Status, event Event) (Status, bool) {
	next, ok := transitions[from][event]
	if !ok {
		return from, false
	}
	return next, true
}

// Session is the authentication state owned by the session manager.
type Session struct {
	Status         Status
	User           *User
	Strategy       Strategy
	LastVerifiedAt time.Time
	CheckInFlight  bool
	LastError      string
}

// NewSession returns the state a client starts with before any verification.
func NewSession() Session {
	return Session{Status: StatusUnknown, Strategy: StrategyCookie}
}

// IsAuthenticated reports whether the session is authenticated. A session
// without a user is never authenticated.
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Snapshot is a read-only copy of the session handed to observers.
type Snapshot struct {
	Status          Status     `json:"status"`
	IsAuthenticated bool       `json:"is_authenticated"`
	User            *User      `json:"user,omitempty"`
	CachedUser      *User      `json:"cached_user,omitempty"`
	Strategy        Strategy   `json:"strategy"`
	LastVerifiedAt  *time.Time `json:"last_verified_at,omitempty"`
	CheckInFlight   bool       `json:"check_in_flight"`
	LastError       string     `json:"last_error,omitempty"`
}

// Snapshot copies the session. cached is the optimistic identity hint shown
// while verification is pending; it never makes the snapshot authenticated.
func (s Session) Snapshot(cached *User) Snapshot {
	snap := Snapshot{
		Status:          s.Status,
		IsAuthenticated: s.IsAuthenticated(),
		Strategy:        s.Strategy,
		CheckInFlight:   s.CheckInFlight,
		LastError:       s.LastError,
	}
	if snap.IsAuthenticated {
		snap.User = s.User.Clone()
	}
	if cached != nil {
		snap.CachedUser = cached.Clone()
	}
	if !s.LastVerifiedAt.IsZero() {
		t := s.LastVerifiedAt
		snap.LastVerifiedAt = &t
	}
	return snap
}
