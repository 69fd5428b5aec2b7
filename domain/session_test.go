package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from  Status
		event Event
		to    Status
		ok    bool
	}{
		{StatusUnknown, EventCheckStarted, StatusVerifying, true},
		{StatusVerifying, EventVerified, StatusAuthenticated, true},
		{StatusVerifying, EventExhausted, StatusUnauthenticated, true},
		{StatusAuthenticated, EventCheckStarted, StatusAuthenticated, true},
		{StatusAuthenticated, EventLogout, StatusUnauthenticated, true},
		{StatusUnauthenticated, EventLogin, StatusAuthenticated, true},
		{StatusUnauthenticated, EventRefreshed, StatusUnauthenticated, false},
		{StatusVerifying, EventCheckStarted, StatusVerifying, false},
	}
	for _, tc := range cases {
		got, ok := Transition(tc.from, tc.event)
		assert.Equal(t, tc.to, got, "%s --%s-->", tc.from, tc.event)
		assert.Equal(t, tc.ok, ok, "%s --%s-->", tc.from, tc.event)
	}
}

func TestSessionAuthenticatedRequiresUser(t *testing.T) {
	s := Session{Status: StatusAuthenticated}
	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.Snapshot(nil).IsAuthenticated)

	s.User = &User{ID: 1, Username: "ada"}
	assert.True(t, s.IsAuthenticated())
}

func TestSnapshotCopies(t *testing.T) {
	u := &User{ID: 1, Username: "ada"}
	s := Session{Status: StatusAuthenticated, User: u, LastVerifiedAt: time.Unix(10, 0)}

	snap := s.Snapshot(u)
	snap.User.Username = "changed"
	snap.CachedUser.Username = "changed"

	assert.Equal(t, "ada", u.Username)
	assert.NotNil(t, snap.LastVerifiedAt)
	assert.Nil(t, Session{}.Snapshot(nil).LastVerifiedAt)
}

func TestCachedIdentity(t *testing.T) {
	var empty *CachedIdentity
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.HasToken())

	id := &CachedIdentity{Token: "t", LastAuthAt: time.Unix(10, 0), LastRefreshAt: time.Unix(20, 0)}
	assert.True(t, id.HasToken())
	assert.Equal(t, time.Unix(20, 0), id.FreshestAuth())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}).DisplayName())
	assert.Equal(t, "ada", (&User{Username: "ada"}).DisplayName())
	assert.Equal(t, "", (*User)(nil).DisplayName())
}
