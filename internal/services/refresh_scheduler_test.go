package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/campus/domain"
)

type fakeSession struct {
	mu        sync.Mutex
	calls     int
	err       error
	listeners []func(domain.Snapshot)
}

func (s *fakeSession) RefreshIfStale(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err == nil, s.err
}

func (s *fakeSession) Subscribe(fn func(domain.Snapshot)) func() {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.listeners = nil
		s.mu.Unlock()
	}
}

func (s *fakeSession) publish(snap domain.Snapshot) {
	s.mu.Lock()
	listeners := append([]func(domain.Snapshot){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *fakeSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticHealth bool

func (h staticHealth) IsOnline() bool { return bool(h) }

func TestTickSkipsWhileOffline(t *testing.T) {
	sess := &fakeSession{}
	rs := NewRefreshScheduler(sess, staticHealth(false), nil, SchedulerConfig{Interval: time.Minute})

	require.NoError(t, rs.Tick(context.Background()))
	assert.Zero(t, sess.count())
}

func TestTickPropagatesRefreshError(t *testing.T) {
	sess := &fakeSession{err: errors.New("boom")}
	rs := NewRefreshScheduler(sess, staticHealth(true), nil, SchedulerConfig{Interval: time.Minute})

	assert.EqualError(t, rs.Tick(context.Background()), "boom")
	assert.Equal(t, 1, sess.count())
}

func TestAttachFollowsAuthentication(t *testing.T) {
	sess := &fakeSession{}
	rs := NewRefreshScheduler(sess, nil, nil, SchedulerConfig{Interval: time.Minute})
	rs.Attach()
	assert.False(t, rs.Running())

	sess.publish(domain.Snapshot{Status: domain.StatusAuthenticated, IsAuthenticated: true})
	assert.True(t, rs.Running())

	sess.publish(domain.Snapshot{Status: domain.StatusUnauthenticated})
	assert.False(t, rs.Running())

	sess.publish(domain.Snapshot{Status: domain.StatusAuthenticated, IsAuthenticated: true})
	assert.True(t, rs.Running())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rs.Stop(ctx)
	assert.False(t, rs.Running())

	sess.publish(domain.Snapshot{Status: domain.StatusAuthenticated, IsAuthenticated: true})
	assert.False(t, rs.Running(), "detached after Stop")
}

func TestScheduledJobRuns(t *testing.T) {
	sess := &fakeSession{}
	rs := NewRefreshScheduler(sess, staticHealth(true), nil, SchedulerConfig{Interval: time.Second})
	rs.Start()
	defer rs.Stop(context.Background())

	assert.Eventually(t, func() bool { return sess.count() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestNilSchedulerIsSafe(t *testing.T) {
	var rs *RefreshScheduler
	assert.NotPanics(t, func() {
		rs.Start()
		rs.Attach()
		rs.Stop(context.Background())
		_ = rs.Tick(context.Background())
	})
	assert.False(t, rs.Running())
}
