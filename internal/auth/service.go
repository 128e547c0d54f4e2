package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rogerio-castellano/stock-ledger/internal/metrics"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

// Revoker remembers logged out token ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type Service struct {
	users   repo.UserRepository
	tokens  *TokenIssuer
	revoked Revoker
	metrics *metrics.Metrics
	log     zerolog.Logger

	cost      int
	dummyHash []byte
}

func NewService(users repo.UserRepository, tokens *TokenIssuer, revoked Revoker, m *metrics.Metrics, logger zerolog.Logger) *Service {
	s := &Service{users: users, tokens: tokens, revoked: revoked, metrics: m, log: logger}
	s.SetHashCost(bcrypt.DefaultCost)
	return s
}

// SetHashCost changes the bcrypt cost of new password hashes.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
	// compared against when the user does not exist, so both paths cost the same
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stockledger-dummy-password"), cost)
}

// Authenticate checks the credentials and issues a session token. Unknown
// users and wrong passwords fail with the same ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Session, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repo.ErrUserNotFound) {
			return nil, "", err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.loginFailed(username)
		return nil, "", models.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.loginFailed(username)
		return nil, "", models.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Generate(user)
	if err != nil {
		return nil, "", err
	}
	s.metrics.LoginAttempt(true)
	s.log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("login succeeded")
	return sessionFromClaims(&claims), token, nil
}

func (s *Service) loginFailed(username string) {
	s.metrics.LoginAttempt(false)
	s.log.Warn().Str("username", username).Msg("login failed")
}

// Register creates a user. The existence lookup only produces the friendly
// error early; the unique constraint on insert decides concurrent races.
func (s *Service) Register(ctx context.Context, reg models.Registration) (models.User, error) {
	if err := reg.Validate(); err != nil {
		return models.User{}, err
	}

	exists, err := s.users.Exists(ctx, reg.Username)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, usernameTaken()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, models.User{Username: reg.Username, PasswordHash: string(hash), Role: reg.Role})
	if errors.Is(err, repo.ErrUsernameTaken) {
		return models.User{}, usernameTaken()
	}
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("user registered")
	return user, nil
}

func usernameTaken() error {
	return &models.ValidationError{
		Errors: []models.FieldError{{Field: "username", Description: "username already exists"}},
		Err:    repo.ErrUsernameTaken,
	}
}

// CreateUser registers a user with any role on behalf of an admin.
func (s *Service) CreateUser(ctx context.Context, session *Session, reg models.Registration) (models.User, error) {
	if err := Require(session, models.RoleAdmin); err != nil {
		return models.User{}, err
	}
	return s.Register(ctx, reg)
}

// ParseSession resolves a token into a session, rejecting revoked tokens.
func (s *Service) ParseSession(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", models.ErrUnauthenticated)
	}
	return sessionFromClaims(claims), nil
}

// Logout revokes the token behind the session until it would have expired.
func (s *Service) Logout(ctx context.Context, session *Session) error {
	if err := Require(session, models.RoleGuest); err != nil {
		return err
	}
	if err := s.revoked.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	s.log.Info().Str("username", session.Username).Msg("logged out")
	return nil
}
