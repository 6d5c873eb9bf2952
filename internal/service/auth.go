package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"rollermate/internal/config"
	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/repository"
	"rollermate/internal/session"
)

// AuthService signs users up and in, and rotates refresh tokens with reuse
// detection. Access tokens are bound to server-side sessions.
type AuthService struct {
	profileRepo      repository.ProfileRepository
	refreshTokenRepo repository.RefreshTokenRepository
	sessions         *session.Manager
	config           *config.Config
	log              zerolog.Logger
}

func NewAuthService(
	profileRepo repository.ProfileRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	sessions *session.Manager,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		profileRepo:      profileRepo,
		refreshTokenRepo: refreshTokenRepo,
		sessions:         sessions,
		config:           cfg,
		log:              logging.For("AuthService"),
	}
}

// ClientInfo identifies the device a token pair is issued to.
type ClientInfo struct {
	DeviceInfo string
	IPAddress  string
}

func (s *AuthService) SignUp(ctx context.Context, req *model.SignUpRequest, client ClientInfo) (*model.AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Password) < model.MinPasswordLength {
		return nil, model.ErrPasswordTooShort
	}
	fullName := strings.TrimSpace(req.FullName)
	if utf8.RuneCountInString(fullName) > model.MaxFullNameLength {
		return nil, model.ErrFullNameTooLong
	}
	sports, err := cleanSports(req.Sports)
	if err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &model.Profile{
		Email:          email,
		PasswordHashed: string(hashed),
		Sports:         sports,
	}
	if fullName != "" {
		profile.FullName = &fullName
	}
	if s.config.DefaultAvatarURL != "" {
		avatar := s.config.DefaultAvatarURL
		profile.AvatarURL = &avatar
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		if !errors.Is(err, model.ErrEmailExists) {
			s.log.Error().Err(err).Msg("SignUp FAILED")
		}
		return nil, model.Upstream("create profile", err)
	}

	pair, err := s.issuePair(ctx, profile.ID, client, "")
	if err != nil {
		return nil, err
	}

	s.log.Info().Str(logging.USER, profile.ID).Msg("SignUp OK")
	return &model.AuthResponse{Profile: profile, TokenPair: *pair}, nil
}

func (s *AuthService) SignIn(ctx context.Context, req *model.SignInRequest, client ClientInfo) (*model.AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	profile, err := s.profileRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrProfileNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, model.Upstream("get profile", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHashed), []byte(req.Password)); err != nil {
		s.log.Info().Str(logging.USER, profile.ID).Msg("SignIn FAILED: wrong password")
		return nil, model.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, profile.ID, client, "")
	if err != nil {
		return nil, err
	}

	s.log.Info().Str(logging.USER, profile.ID).Msg("SignIn OK")
	return &model.AuthResponse{Profile: profile, TokenPair: *pair}, nil
}

// Refresh rotates a refresh token. Presenting an already rotated token is
// treated as theft: every token and session of the user is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshTokenRaw string, client ClientInfo) (*model.TokenPair, error) {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		if errors.Is(err, model.ErrRefreshTokenNotFound) {
			return nil, err
		}
		return nil, model.Upstream("find refresh token", err)
	}

	if token.IsRevoked() {
		s.log.Warn().Str(logging.USER, token.UserID).Msg("Refresh: reuse detected, revoking all sessions")
		if err := s.revokeEverything(ctx, token.UserID); err != nil {
			s.log.Error().Err(err).Str(logging.USER, token.UserID).Msg("revoke token family FAILED")
		}
		return nil, model.ErrRefreshTokenReused
	}
	if token.IsExpired() {
		return nil, model.ErrRefreshTokenExpired
	}

	pair, err := s.issuePair(ctx, token.UserID, client, token.ID)
	if errors.Is(err, model.ErrRefreshTokenReused) {
		// A concurrent refresh rotated the same token first.
		s.log.Warn().Str(logging.USER, token.UserID).Msg("Refresh: lost rotation race, revoking all sessions")
		if err := s.revokeEverything(ctx, token.UserID); err != nil {
			s.log.Error().Err(err).Str(logging.USER, token.UserID).Msg("revoke token family FAILED")
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str(logging.USER, token.UserID).Msg("Refresh OK")
	return pair, nil
}

// SignOut ends the current session and, when given, revokes its refresh token.
func (s *AuthService) SignOut(ctx context.Context, sess *session.Session, refreshTokenRaw string) error {
	if refreshTokenRaw != "" {
		token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
		switch {
		case err == nil && token.UserID == sess.UserID:
			if err := s.refreshTokenRepo.Revoke(ctx, token.ID); err != nil {
				return model.Upstream("revoke refresh token", err)
			}
		case err != nil && !errors.Is(err, model.ErrRefreshTokenNotFound):
			return model.Upstream("find refresh token", err)
		}
	}

	if err := s.sessions.End(ctx, sess); err != nil {
		return err
	}
	s.log.Info().Str(logging.USER, sess.UserID).Msg("SignOut OK")
	return nil
}

// SignOutAll ends every session of the user on every device.
func (s *AuthService) SignOutAll(ctx context.Context, userID string) error {
	if err := s.revokeEverything(ctx, userID); err != nil {
		return err
	}
	s.log.Info().Str(logging.USER, userID).Msg("SignOutAll OK")
	return nil
}

func (s *AuthService) revokeEverything(ctx context.Context, userID string) error {
	revoked, err := s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return model.Upstream("revoke refresh tokens", err)
	}
	s.log.Debug().Str(logging.USER, userID).Int64("tokens", revoked).Msg("refresh tokens revoked")
	return s.sessions.EndAll(ctx, userID)
}

// issuePair starts a session and stores a fresh refresh token. With a
// non-empty rotateFrom the new token replaces that one atomically. The session
// is ended again if the token cannot be stored.
func (s *AuthService) issuePair(ctx context.Context, userID string, client ClientInfo, rotateFrom string) (*model.TokenPair, error) {
	accessToken, sess, err := s.sessions.Issue(ctx, userID)
	if err != nil {
		return nil, err
	}

	refreshTokenRaw := uuid.New().String()
	refreshToken := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(refreshTokenRaw),
		ExpiresAt: time.Now().Add(s.config.RefreshTokenTTL()),
	}
	if client.DeviceInfo != "" {
		refreshToken.DeviceInfo = &client.DeviceInfo
	}
	if client.IPAddress != "" {
		refreshToken.IPAddress = &client.IPAddress
	}

	if rotateFrom == "" {
		err = s.refreshTokenRepo.Create(ctx, refreshToken)
	} else {
		err = s.refreshTokenRepo.Rotate(ctx, rotateFrom, refreshToken)
	}
	if err != nil {
		if endErr := s.sessions.End(ctx, sess); endErr != nil {
			s.log.Error().Err(endErr).Str(logging.USER, userID).Msg("end orphaned session FAILED")
		}
		if errors.Is(err, model.ErrRefreshTokenReused) {
			return nil, err
		}
		return nil, model.Upstream("store refresh token", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenRaw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.ErrInvalidEmail
	}
	return email, nil
}

// cleanSports trims entries, drops blanks and duplicates, and enforces the cap.
func cleanSports(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, sport := range in {
		sport = strings.TrimSpace(sport)
		if sport == "" {
			continue
		}
		if _, dup := seen[sport]; dup {
			continue
		}
		seen[sport] = struct{}{}
		out = append(out, sport)
	}
	if len(out) > model.MaxSports {
		return nil, model.ErrTooManySports
	}
	return out, nil
}
