package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"socialhub/internal/config"
	"socialhub/internal/events"
	"socialhub/internal/models"
	"socialhub/internal/repository"
	"socialhub/internal/security"
)

// UserStore is the persistence boundary the use cases depend on. Absent users
// are reported as repository.ErrUserNotFound, uniqueness violations as
// repository.ErrDuplicateEmail / repository.ErrDuplicateUsername.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
	MarkLoggedIn(ctx context.Context, id int64) error
	MarkLoggedOut(ctx context.Context, id int64) error
}

type PasswordHasher interface {
	Validate(password string) error
	Hash(password string) ([]byte, error)
	Compare(password string, hash []byte) bool
}

type TokenIssuer interface {
	IssueAccess(p models.Principal) (string, error)
	IssueRefresh(p models.Principal) (string, error)
	VerifyAccess(token string) (security.TokenClaims, error)
	VerifyRefresh(token string) (security.TokenClaims, error)
}

type AuthService struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	events  events.Publisher
	timeout time.Duration
	log     zerolog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(
	users UserStore,
	hasher PasswordHasher,
	tokens TokenIssuer,
	publisher events.Publisher,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		events:  publisher,
		timeout: cfg.Security.OperationTimeout,
		log:     log,
	}
}

type RegisterResult struct {
	User         models.User
	AccessToken  string
	RefreshToken string
}

func (s *AuthService) Register(ctx context.Context, input models.NewUser) (RegisterResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	if input.Email == "" || input.Username == "" || input.Password == "" {
		return RegisterResult{}, ErrBadRequest
	}

	if _, err := s.findByEmail(ctx, input.Email); err == nil {
		return RegisterResult{}, ErrEmailAlreadyInUse
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return RegisterResult{}, err
	}

	if err := s.hasher.Validate(input.Password); err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrPasswordValidation, err)
	}

	passwordHash, err := bounded(ctx, s.timeout, func() ([]byte, error) {
		return s.hasher.Hash(input.Password)
	})
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}

	user, err := s.create(ctx, models.User{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	principal := models.Principal{UserID: user.ID, Role: user.Role}
	accessToken, err := s.tokens.IssueAccess(principal)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrGeneratingToken, err)
	}
	refreshToken, err := s.tokens.IssueRefresh(principal)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %w", ErrRefreshingToken, err)
	}

	s.publish(ctx, events.TypeRegistered, user.ID)

	return RegisterResult{
		User:         user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

type LoginResult struct {
	User         models.User
	AccessToken  string
	RefreshToken string
}

// Login reports ErrLogin for an unknown email and ErrInvalidPassword for a bad
// password; the transport collapses both into one response.
func (s *AuthService) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrBadRequest
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// spend the same hashing time as a real comparison
			_, _ = bounded(ctx, s.timeout, func() (bool, error) {
				return s.hasher.Compare(password, s.placeholderHash()), nil
			})
			return LoginResult{}, ErrLogin
		}
		return LoginResult{}, err
	}

	ok, err := bounded(ctx, s.timeout, func() (bool, error) {
		return s.hasher.Compare(password, user.PasswordHash), nil
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: compare password: %w", ErrInternal, err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidPassword
	}

	if user.Status == models.UserStatusSuspended {
		return LoginResult{}, ErrAccountSuspended
	}

	principal := models.Principal{UserID: user.ID, Role: user.Role}
	accessToken, err := s.tokens.IssueAccess(principal)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %w", ErrGeneratingToken, err)
	}
	refreshToken, err := s.tokens.IssueRefresh(principal)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %w", ErrRefreshingToken, err)
	}

	if err := s.markLoggedIn(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("record last login failed")
	} else {
		now := time.Now().UTC()
		user.LastLogin = &now
		if user.Status == models.UserStatusInactive {
			user.Status = models.UserStatusActive
		}
	}

	s.publish(ctx, events.TypeLoggedIn, user.ID)

	return LoginResult{
		User:         user.Public(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

type RefreshResult struct {
	UserID      int64
	Role        models.UserRole
	AccessToken string
}

// RefreshToken mints a new access token. The role comes from the stored user,
// not from the presented token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (RefreshResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrVerifyingToken, err)
	}
	if claims.UserID == 0 || claims.Role == "" {
		return RefreshResult{}, ErrUnauthorized
	}

	user, err := s.findByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return RefreshResult{}, ErrUserWithIDNotFound
		}
		return RefreshResult{}, err
	}
	if user.Status == models.UserStatusSuspended {
		return RefreshResult{}, ErrUnauthorized
	}

	accessToken, err := s.tokens.IssueAccess(models.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrGeneratingToken, err)
	}

	return RefreshResult{
		UserID:      user.ID,
		Role:        user.Role,
		AccessToken: accessToken,
	}, nil
}

// Authenticate verifies an access token and confirms its subject still exists
// and is not suspended. The returned principal carries the stored role.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.Principal, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %w", ErrVerifyingToken, err)
	}
	if claims.UserID == 0 || claims.Role == "" {
		return models.Principal{}, ErrUnauthorized
	}

	user, err := s.findByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Principal{}, ErrUnauthorized
		}
		return models.Principal{}, err
	}
	if user.Status == models.UserStatusSuspended {
		return models.Principal{}, ErrUnauthorized
	}

	return models.Principal{UserID: user.ID, Role: user.Role}, nil
}

// VerifyUser is the guard form of Authenticate: nil means the caller may proceed.
func (s *AuthService) VerifyUser(ctx context.Context, accessToken string) error {
	_, err := s.Authenticate(ctx, accessToken)
	return err
}

func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if _, err := s.findByID(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrLogout, err)
	}

	if err := s.markLoggedOut(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrLogout, err)
	}

	s.publish(ctx, events.TypeLoggedOut, userID)
	return nil
}

// LogoutWithToken resolves the user from an access token and logs them out.
func (s *AuthService) LogoutWithToken(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerifyingToken, err)
	}
	if claims.UserID == 0 {
		return ErrUnauthorized
	}
	return s.Logout(ctx, claims.UserID)
}

// CurrentUser loads the public view of a user for authenticated endpoints.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.findByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserWithIDNotFound
		}
		return models.User{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%w: find user by email: %w", ErrInternal, err)
	}
	return user, err
}

func (s *AuthService) findByID(ctx context.Context, id int64) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%w: find user by id: %w", ErrInternal, err)
	}
	return user, err
}

func (s *AuthService) create(ctx context.Context, user models.User) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.users.Create(ctx, user)
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, repository.ErrDuplicateEmail):
		return models.User{}, ErrEmailAlreadyInUse
	case errors.Is(err, repository.ErrDuplicateUsername):
		return models.User{}, ErrDuplicateUsername
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.User{}, fmt.Errorf("%w: create user: %w", ErrInternal, err)
	default:
		return models.User{}, fmt.Errorf("%w: %w", ErrCreatingUser, err)
	}
}

func (s *AuthService) markLoggedIn(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.users.MarkLoggedIn(ctx, id)
}

func (s *AuthService) markLoggedOut(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.users.MarkLoggedOut(ctx, id)
}

func (s *AuthService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *AuthService) publish(ctx context.Context, t events.Type, userID int64) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.events.Publish(ctx, events.New(t, userID)); err != nil {
		s.log.Warn().Err(err).Str("event", string(t)).Int64("user_id", userID).Msg("publish auth event failed")
	}
}

func (s *AuthService) placeholderHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("placeholder-password-0")
		if err != nil {
			s.log.Error().Err(err).Msg("build placeholder hash failed")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// bounded runs fn but stops waiting once ctx or timeout expires. fn keeps
// running in the background in that case; its result is dropped.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
