package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("Authentication Failed")
	ErrForbidden          = errors.New("Forbidden")
)

// UserDataResetter clears a user's stored expenses.
type UserDataResetter interface {
	ResetUser(ctx context.Context, userID string) error
}

type LoginResult struct {
	Token    string
	Username string
}

type UserService struct {
	users         store.UserStore
	resetter      UserDataResetter
	issuer        *auth.Issuer
	bcryptCost    int
	guestUsername string
	now           func() time.Time
}

// NewUserService wires account management. Logging in as guestUsername wipes
// that account's expenses through resetter first.
func NewUserService(users store.UserStore, resetter UserDataResetter, issuer *auth.Issuer, bcryptCost int, guestUsername string) *UserService {
	return &UserService{
		users:         users,
		resetter:      resetter,
		issuer:        issuer,
		bcryptCost:    bcryptCost,
		guestUsername: guestUsername,
		now:           time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, creds core.Credentials) (core.User, error) {
	return s.create(ctx, creds, false)
}

func (s *UserService) create(ctx context.Context, creds core.Credentials, admin bool) (core.User, error) {
	if err := creds.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(creds.Password, s.bcryptCost)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.users.CreateUser(ctx, core.User{
		Username:        creds.Username,
		PasswordHash:    hash,
		IsAdmin:         admin,
		MonthlyExpenses: map[core.YearMonth][]string{},
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return core.User{}, store.ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	applog.FromContext(ctx).InfoContext(ctx, "User registered",
		applog.NewFields().WithUser(u.ID, u.Username).WithOperation(applog.OpRegister).ToSlice()...)
	return u, nil
}

// Login checks the password and issues a token. The guest account starts
// every session empty.
func (s *UserService) Login(ctx context.Context, creds core.Credentials) (LoginResult, error) {
	if err := creds.Validate(); err != nil {
		return LoginResult{}, err
	}
	u, err := s.users.UserByName(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordLogin(false)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, creds.Password) {
		metrics.RecordLogin(false)
		return LoginResult{}, ErrInvalidCredentials
	}

	if s.IsGuest(u.Username) && s.resetter != nil {
		if err := s.resetter.ResetUser(ctx, u.ID); err != nil {
			return LoginResult{}, fmt.Errorf("reset guest data: %w", err)
		}
		applog.FromContext(ctx).InfoContext(ctx, "Guest data reset",
			applog.NewFields().WithUser(u.ID, u.Username).WithOperation(applog.OpReset).ToSlice()...)
	}

	token, err := s.issuer.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	metrics.RecordLogin(true)
	return LoginResult{Token: token, Username: u.Username}, nil
}

func (s *UserService) IsGuest(username string) bool {
	return s.guestUsername != "" && username == s.guestUsername
}

// Authenticate resolves a bearer token to a stored user.
func (s *UserService) Authenticate(ctx context.Context, token string) (core.User, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return core.User{}, ErrUnauthenticated
	}
	u, err := s.users.UserByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.User{}, ErrUnauthenticated
		}
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// List returns every user; only admins may call it.
func (s *UserService) List(ctx context.Context, requester core.User) ([]core.User, error) {
	if !requester.IsAdmin {
		return nil, ErrForbidden
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// EnsureUser creates the account unless the username already exists.
func (s *UserService) EnsureUser(ctx context.Context, creds core.Credentials, admin bool) (core.User, error) {
	if u, err := s.users.UserByName(ctx, creds.Username); err == nil {
		return u, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	u, err := s.create(ctx, creds, admin)
	if errors.Is(err, store.ErrUsernameTaken) {
		return s.users.UserByName(ctx, creds.Username)
	}
	return u, err
}
