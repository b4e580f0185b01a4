package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"feedsync/internal/apperr"
	"feedsync/internal/models"
	"feedsync/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const sessionHeader = "x-session-id"

// HTTPSource is the Source backed by the social REST API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	tracer  trace.Tracer

	mu      sync.RWMutex
	session models.Session
}

func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  utils.OrGlobal(logger).Named("remote"),
		tracer:  otel.Tracer("feedsync/remote"),
	}
}

func (s *HTTPSource) UseSession(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

func (s *HTTPSource) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

func (s *HTTPSource) ListIDs(ctx context.Context, scope Scope, cursor int64, pageSize int) ([]int64, error) {
	path := "/feed"
	if !scope.IsGlobal() {
		path = "/post/list/" + strconv.FormatInt(scope.AuthorID, 10)
	}

	q := url.Values{}
	if cursor != 0 {
		q.Set("maxPostId", strconv.FormatInt(cursor, 10))
	}
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}

	var ids []int64
	if err := s.do(ctx, "listIds", http.MethodGet, path, q, nil, &ids); err != nil {
		return nil, err
	}
	s.logger.Debug("ids received", zap.Stringer("scope", scope), zap.Int64("cursor", cursor), zap.Int("count", len(ids)))
	return ids, nil
}

func (s *HTTPSource) GetContent(ctx context.Context, id int64) (models.ContentItem, error) {
	var body models.PostResponse
	if err := s.do(ctx, "getContent", http.MethodGet, "/post/"+strconv.FormatInt(id, 10), nil, nil, &body); err != nil {
		return models.ContentItem{}, err
	}
	return toContent(body), nil
}

func (s *HTTPSource) GetIdentity(ctx context.Context, id int64) (models.Identity, error) {
	var body models.UserResponse
	if err := s.do(ctx, "getIdentity", http.MethodGet, "/user/"+strconv.FormatInt(id, 10), nil, nil, &body); err != nil {
		return models.Identity{}, err
	}
	return toIdentity(body), nil
}

func (s *HTTPSource) MutateFollow(ctx context.Context, targetID int64, follow bool) error {
	method := http.MethodPut
	if !follow {
		method = http.MethodDelete
	}
	return s.do(ctx, "mutateFollow", method, "/follow/"+strconv.FormatInt(targetID, 10), nil, nil, nil)
}

func (s *HTTPSource) CreateContent(ctx context.Context, d models.Draft) (models.ContentItem, error) {
	req := newPostBody(d)
	var body models.PostResponse
	if err := s.do(ctx, "createContent", http.MethodPost, "/post", nil, req, &body); err != nil {
		return models.ContentItem{}, err
	}
	return toContent(body), nil
}

func (s *HTTPSource) CreateUser(ctx context.Context) (models.Session, error) {
	var body models.CreateUserResponse
	if err := s.do(ctx, "createUser", http.MethodPost, "/user", nil, struct{}{}, &body); err != nil {
		return models.Session{}, err
	}
	return models.Session{IdentityID: body.UserID, Token: body.SessionID}, nil
}

func (s *HTTPSource) UpdateIdentity(ctx context.Context, name, bio, birthDate string) (models.Identity, error) {
	req := updateUserBody(name, bio, birthDate)
	var body models.UserResponse
	if err := s.do(ctx, "updateIdentity", http.MethodPut, "/user", nil, req, &body); err != nil {
		return models.Identity{}, err
	}
	return toIdentity(body), nil
}

func (s *HTTPSource) UpdateAvatar(ctx context.Context, base64 string) (models.Identity, error) {
	var body models.UserResponse
	if err := s.do(ctx, "updateAvatar", http.MethodPut, "/user/image", nil, updateImageBody(base64), &body); err != nil {
		return models.Identity{}, err
	}
	return toIdentity(body), nil
}

// do runs one request and maps its outcome onto the apperr taxonomy.
func (s *HTTPSource) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	ctx, span := s.tracer.Start(ctx, "remote."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	err := s.roundTrip(ctx, op, method, path, q, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("remote call failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
	}
	return err
}

func (s *HTTPSource) roundTrip(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	target := s.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := s.token(); tok != "" {
		req.Header.Set(sessionHeader, tok)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Network(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound(op)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return apperr.Rejected(op, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.Error{Kind: apperr.ErrServerRejected, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}
