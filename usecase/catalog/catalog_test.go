package catalog

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListUniversities(ctx context.Context, token string) ([]domain.University, error) {
	args := m.Called(ctx, token)
	out, _ := args.Get(0).([]domain.University)
	return out, args.Error(1)
}

func (m *MockAPI) ListCourses(ctx context.Context, token string, f domain.CourseFilter) ([]domain.Course, error) {
	args := m.Called(ctx, token, f)
	out, _ := args.Get(0).([]domain.Course)
	return out, args.Error(1)
}

func (m *MockAPI) GetCourse(ctx context.Context, token string, id int64) (*domain.Course, error) {
	args := m.Called(ctx, token, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Course), args.Error(1)
}

func (m *MockAPI) SubmitFeedback(ctx context.Context, token string, fb domain.Feedback) error {
	return m.Called(ctx, token, fb).Error(0)
}

func (m *MockAPI) Chat(ctx context.Context, token string, req transport.ChatRequest) (*domain.ChatReply, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatReply), args.Error(1)
}

type fakeSession struct {
	token  string
	checks atomic.Int32
}

func (s *fakeSession) AuthToken() string { return s.token }

func (s *fakeSession) CheckAuth(context.Context, bool) domain.Snapshot {
	s.checks.Add(1)
	return domain.Snapshot{Status: domain.StatusUnauthenticated}
}

var errUnauthorized = domain.NewError(domain.ErrCodeUnauthorized, "unauthorized")

func TestCompareCoursesKeepsOrder(t *testing.T) {
	api := new(MockAPI)
	sess := &fakeSession{token: "tok"}
	for _, id := range []int64{3, 1, 2} {
		api.On("GetCourse", mock.Anything, "tok", id).Return(&domain.Course{ID: id}, nil).Once()
	}
	uc := New(api, sess, nil)

	got, err := uc.CompareCourses(context.Background(), []int64{3, 1, 2})

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{got[0].ID, got[1].ID, got[2].ID})
	api.AssertExpectations(t)
}

func TestCompareCoursesValidation(t *testing.T) {
	uc := New(new(MockAPI), &fakeSession{}, nil)
	for _, ids := range [][]int64{{1}, {1, 2, 3, 4, 5}, {1, 1}, {0, 2}} {
		_, err := uc.CompareCourses(context.Background(), ids)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid), "%v", ids)
	}
}

func TestCompareCoursesUnauthorizedReverifies(t *testing.T) {
	api := new(MockAPI)
	sess := &fakeSession{}
	api.On("GetCourse", mock.Anything, "", int64(1)).Return(&domain.Course{ID: 1}, nil).Maybe()
	api.On("GetCourse", mock.Anything, "", int64(2)).Return(nil, errUnauthorized)
	uc := New(api, sess, nil)

	_, err := uc.CompareCourses(context.Background(), []int64{1, 2})

	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))
	assert.Equal(t, int32(1), sess.checks.Load())
}

func TestListCoursesPassesFilter(t *testing.T) {
	api := new(MockAPI)
	filter := domain.CourseFilter{UniversityID: 4, Search: "data"}
	api.On("ListCourses", mock.Anything, "", filter).Return([]domain.Course{{ID: 9}}, nil).Once()
	uc := New(api, &fakeSession{}, nil)

	got, err := uc.ListCourses(context.Background(), domain.CourseFilter{UniversityID: 4, Search: "  data "})

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListUniversitiesNonAuthErrorDoesNotReverify(t *testing.T) {
	api := new(MockAPI)
	sess := &fakeSession{}
	api.On("ListUniversities", mock.Anything, "").Return(nil, domain.ErrBackendDown).Once()
	uc := New(api, sess, nil)

	_, err := uc.ListUniversities(context.Background())

	assert.ErrorIs(t, err, domain.ErrBackendDown)
	assert.Zero(t, sess.checks.Load())
}

func TestSubmitFeedbackValidates(t *testing.T) {
	api := new(MockAPI)
	uc := New(api, &fakeSession{}, nil)

	err := uc.SubmitFeedback(context.Background(), domain.Feedback{Name: "a", Email: "nope", Message: "hi"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	fb := domain.Feedback{Name: "Ada", Email: "ada@example.com", Message: "Great", Rating: 5}
	api.On("SubmitFeedback", mock.Anything, "", fb).Return(nil).Once()
	assert.NoError(t, uc.SubmitFeedback(context.Background(), fb))
}

func TestChat(t *testing.T) {
	api := new(MockAPI)
	api.On("Chat", mock.Anything, "tok", transport.ChatRequest{Message: "hello", ConversationID: "c1"}).
		Return(&domain.ChatReply{Reply: "hi", ConversationID: "c1"}, nil).Once()
	uc := New(api, &fakeSession{token: "tok"}, nil)

	reply, err := uc.Chat(context.Background(), " hello ", "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply.Reply)

	_, err = uc.Chat(context.Background(), "   ", "")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}
