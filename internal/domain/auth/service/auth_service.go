package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

// ProfileProvisioner creates the profile row on first session start.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
}

type AuthService struct {
	tokens      TokenManager
	profiles    ProfileProvisioner
	store       sessions.Store
	sessionName string
	logger      *slog.Logger
}

func NewAuthService(tokens TokenManager, profiles ProfileProvisioner, store sessions.Store, sessionName string, logger *slog.Logger) *AuthService {
	return &AuthService{
		tokens:      tokens,
		profiles:    profiles,
		store:       store,
		sessionName: sessionName,
		logger:      logger,
	}
}

// Authenticate verifies an access token and returns the identity it asserts.
func (s *AuthService) Authenticate(tokenString string) (types.Identity, error) {
	claims, err := s.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %w", types.ErrUnauthenticated, err)
	}
	id, err := claims.Identity()
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %w", types.ErrUnauthenticated, err)
	}
	return id, nil
}

// StartSession verifies the token, provisions the profile and stores the token in the session cookie.
func (s *AuthService) StartSession(ctx context.Context, w http.ResponseWriter, r *http.Request, tokenString string) (types.Identity, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "StartSession", trace.WithAttributes(
		attribute.String("session.name", s.sessionName),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "StartSession"))

	id, err := s.Authenticate(tokenString)
	if err != nil {
		l.InfoContext(ctx, "Rejected session token", slog.Any("error", err))
		span.SetStatus(codes.Error, "invalid token")
		return types.Identity{}, err
	}
	span.SetAttributes(attribute.String("user.id", id.UserID.String()))

	if _, err := s.profiles.EnsureProfile(ctx, id.UserID); err != nil {
		l.ErrorContext(ctx, "Failed to provision profile", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile provisioning failed")
		return types.Identity{}, fmt.Errorf("failed to provision profile: %w", err)
	}

	session, err := s.store.Get(r, s.sessionName)
	if err != nil {
		// A stale cookie signed with a rotated secret still yields a usable new session.
		l.DebugContext(ctx, "Discarding undecodable session", slog.Any("error", err))
	}
	session.Values[sessionTokenKey] = tokenString
	if err := session.Save(r, w); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session save failed")
		return types.Identity{}, fmt.Errorf("failed to save session: %w", err)
	}

	l.InfoContext(ctx, "Session started", slog.String("userID", id.UserID.String()))
	span.SetStatus(codes.Ok, "session started")
	return id, nil
}

// EndSession expires the session cookie.
func (s *AuthService) EndSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, s.sessionName)
	delete(session.Values, sessionTokenKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// CurrentIdentity resolves the caller from a bearer token, falling back to the session cookie.
func (s *AuthService) CurrentIdentity(r *http.Request) (types.Identity, bool) {
	if token, ok := bearerToken(r); ok {
		id, err := s.Authenticate(token)
		if err != nil {
			s.logger.DebugContext(r.Context(), "Ignoring invalid bearer token", slog.Any("error", err))
			return types.Identity{}, false
		}
		return id, true
	}

	session, err := s.store.Get(r, s.sessionName)
	if err != nil {
		return types.Identity{}, false
	}
	token, ok := session.Values[sessionTokenKey].(string)
	if !ok || token == "" {
		return types.Identity{}, false
	}
	id, err := s.Authenticate(token)
	if err != nil {
		s.logger.DebugContext(r.Context(), "Session token no longer valid", slog.Any("error", err))
		return types.Identity{}, false
	}
	return id, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
