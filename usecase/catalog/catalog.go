package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
)

const (
	minCompare = 2
	maxCompare = 4
)

// API is the catalog part of the backend.
type API interface {
	ListUniversities(ctx context.Context, token string) ([]domain.University, error)
	ListCourses(ctx context.Context, token string, f domain.CourseFilter) ([]domain.Course, error)
	GetCourse(ctx context.Context, token string, id int64) (*domain.Course, error)
	SubmitFeedback(ctx context.Context, token string, fb domain.Feedback) error
	Chat(ctx context.Context, token string, req transport.ChatRequest) (*domain.ChatReply, error)
}

// Session supplies credentials and reacts to rejected ones.
type Session interface {
	AuthToken() string
	CheckAuth(ctx context.Context, forceRedirect bool) domain.Snapshot
}

type UseCase struct {
	api     API
	session Session
	logger  *zap.Logger
}

func New(api API, session Session, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		api:     api,
		session: session,
		logger:  logger.Named("catalog"),
	}
}

func (uc *UseCase) ListUniversities(ctx context.Context) ([]domain.University, error) {
	out, err := uc.api.ListUniversities(ctx, uc.session.AuthToken())
	return out, uc.check(ctx, err)
}

func (uc *UseCase) ListCourses(ctx context.Context, f domain.CourseFilter) ([]domain.Course, error) {
	f.Search = strings.TrimSpace(f.Search)
	out, err := uc.api.ListCourses(ctx, uc.session.AuthToken(), f)
	return out, uc.check(ctx, err)
}

func (uc *UseCase) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	if id <= 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "course id must be positive")
	}
	out, err := uc.api.GetCourse(ctx, uc.session.AuthToken(), id)
	return out, uc.check(ctx, err)
}

// CompareCourses fetches two to four distinct courses concurrently and
// returns them in the requested order.
func (uc *UseCase) CompareCourses(ctx context.Context, ids []int64) ([]domain.Course, error) {
	if len(ids) < minCompare || len(ids) > maxCompare {
		return nil, domain.NewError(domain.ErrCodeInvalid, "compare between 2 and 4 courses")
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, domain.NewError(domain.ErrCodeInvalid, "course id must be positive")
		}
		if _, dup := seen[id]; dup {
			return nil, domain.NewError(domain.ErrCodeInvalid, "courses to compare must be distinct")
		}
		seen[id] = struct{}{}
	}

	token := uc.session.AuthToken()
	out := make([]domain.Course, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			c, err := uc.api.GetCourse(gctx, token, id)
			if err != nil {
				return err
			}
			out[i] = *c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, uc.check(ctx, err)
	}
	return out, nil
}

func (uc *UseCase) SubmitFeedback(ctx context.Context, fb domain.Feedback) error {
	fb.Name = strings.TrimSpace(fb.Name)
	fb.Email = strings.TrimSpace(fb.Email)
	fb.Message = strings.TrimSpace(fb.Message)
	if fb.Name == "" || fb.Message == "" || !strings.Contains(fb.Email, "@") {
		return domain.NewError(domain.ErrCodeInvalid, "name, a valid email and a message are required")
	}
	if fb.Rating < 0 || fb.Rating > 5 {
		return domain.NewError(domain.ErrCodeInvalid, "rating must be between 1 and 5 when given")
	}
	return uc.check(ctx, uc.api.SubmitFeedback(ctx, uc.session.AuthToken(), fb))
}

func (uc *UseCase) Chat(ctx context.Context, message, conversationID string) (*domain.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "message is empty")
	}
	out, err := uc.api.Chat(ctx, uc.session.AuthToken(), transport.ChatRequest{
		Message:        message,
		ConversationID: conversationID,
	})
	return out, uc.check(ctx, err)
}

// check re-verifies the session when the backend rejects the credential.
func (uc *UseCase) check(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		uc.logger.Info("catalog request rejected, re-verifying session")
		uc.session.CheckAuth(ctx, false)
	}
	return err
}
