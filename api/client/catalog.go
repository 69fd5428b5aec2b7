package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
)

// ListUniversities returns the universities the backend exposes.
func (c *Client) ListUniversities(ctx context.Context, token string) ([]domain.University, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/universities/", token: token}, &raw); err != nil {
		return nil, err
	}
	var out []domain.University
	return out, decodeList(raw, &out)
}

// ListCourses returns courses matching the filter.
func (c *Client) ListCourses(ctx context.Context, token string, f domain.CourseFilter) ([]domain.Course, error) {
	q := url.Values{}
	if f.UniversityID > 0 {
		q.Set("university", strconv.FormatInt(f.UniversityID, 10))
	}
	if f.Level != "" {
		q.Set("level", f.Level)
	}
	if f.Field != "" {
		q.Set("field", f.Field)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	var raw json.RawMessage
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: "/courses/", query: q, token: token}, &raw); err != nil {
		return nil, err
	}
	var out []domain.Course
	return out, decodeList(raw, &out)
}

// GetCourse returns one course.
func (c *Client) GetCourse(ctx context.Context, token string, id int64) (*domain.Course, error) {
	var out domain.Course
	path := "/courses/" + strconv.FormatInt(id, 10) + "/"
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: path, token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitFeedback posts a feedback message.
func (c *Client) SubmitFeedback(ctx context.Context, token string, fb domain.Feedback) error {
	return c.do(ctx, call{method: fasthttp.MethodPost, path: "/feedback/", body: fb, token: token}, nil)
}

// Chat sends a message to the assistant.
func (c *Client) Chat(ctx context.Context, token string, req transport.ChatRequest) (*domain.ChatReply, error) {
	var out domain.ChatReply
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: "/chat/", body: req, token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeList accepts a bare array or a paginated {"results": [...]} body.
func decodeList(raw json.RawMessage, out any) error {
	var page struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err == nil && len(page.Results) > 0 {
		raw = page.Results
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "malformed list payload", err)
	}
	return nil
}
