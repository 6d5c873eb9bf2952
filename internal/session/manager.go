package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/realtime"
)

// Manager issues and resolves access tokens. Every token names a session; a
// token whose session was ended is rejected even before it expires.
type Manager struct {
	store  Store
	broker realtime.Broker
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewManager(store Store, broker realtime.Broker, secret string, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		broker: broker,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    logging.For("SessionManager"),
	}
}

// Issue starts a session for userID and returns its signed access token.
func (m *Manager) Issue(ctx context.Context, userID string) (string, *Session, error) {
	now := m.now()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(m.ttl).UTC(),
	}

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}

	if err := m.store.Save(ctx, sess); err != nil {
		m.log.Error().Err(err).Str(logging.USER, userID).Msg("Issue FAILED")
		return "", nil, model.Upstream("save session", err)
	}

	m.log.Debug().Str(logging.USER, userID).Str("session_id", sess.ID).Msg("Issue OK")
	return token, &sess, nil
}

// Resolve validates token and returns the live session it names.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrSessionExpired
		}
		return nil, model.ErrSessionInvalid
	}

	sess, err := m.store.Load(ctx, claims.ID)
	if errors.Is(err, ErrNoSession) {
		return nil, model.ErrSessionInvalid
	}
	if err != nil {
		return nil, model.Upstream("load session", err)
	}
	if sess.UserID != claims.Subject {
		return nil, model.ErrSessionInvalid
	}
	return sess, nil
}

// End signs out a single session.
func (m *Manager) End(ctx context.Context, sess *Session) error {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		m.log.Error().Err(err).Str(logging.USER, sess.UserID).Msg("End FAILED")
		return model.Upstream("delete session", err)
	}
	m.publishSignedOut(ctx, sess.UserID, []string{sess.ID})
	return nil
}

// EndAll signs out every session of userID.
func (m *Manager) EndAll(ctx context.Context, userID string) error {
	ids, err := m.store.DeleteUser(ctx, userID)
	if err != nil {
		m.log.Error().Err(err).Str(logging.USER, userID).Msg("EndAll FAILED")
		return model.Upstream("delete user sessions", err)
	}
	m.publishSignedOut(ctx, userID, ids)
	m.log.Info().Str(logging.USER, userID).Int("sessions", len(ids)).Msg("EndAll OK")
	return nil
}

// Watch streams session changes for userID. Each event's Record is the JSON
// list of ended session ids.
func (m *Manager) Watch(ctx context.Context, userID string) (*realtime.Subscription, error) {
	return m.broker.Subscribe(ctx, realtime.TableSessions, userID)
}

func (m *Manager) publishSignedOut(ctx context.Context, userID string, ids []string) {
	event, err := realtime.NewInsertEvent(realtime.TableSessions, userID, ids)
	if err != nil {
		m.log.Error().Err(err).Msg("build sign-out event")
		return
	}
	event.Type = realtime.TypeSignedOut
	if err := m.broker.Publish(ctx, event); err != nil {
		m.log.Warn().Err(err).Str(logging.USER, userID).Msg("publish sign-out FAILED")
	}
}
