package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
)

// Auth registers users and authenticates logins.
type Auth struct {
	users  model.UserStore
	tokens model.TokenIssuer
	cost   int
	logger *logger.Logger

	// dummyHash is compared against when the email is unknown. It uses the
	// configured cost so both login failure paths take the same time.
	dummyHash []byte
}

// NewAuth creates the identity service. A cost outside bcrypt's range falls
// back to bcrypt.DefaultCost.
func NewAuth(users model.UserStore, tokens model.TokenIssuer, logger *logger.Logger, cost int) *Auth {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("inkpost-dummy-password"), cost)
	return &Auth{
		users:     users,
		tokens:    tokens,
		cost:      cost,
		logger:    logger,
		dummyHash: dummyHash,
	}
}

// Session is the result of a successful login.
type Session struct {
	User  model.PublicUser
	Token string
}

// Register creates a user with a bcrypt-hashed password.
func (a *Auth) Register(ctx context.Context, name, email, password string) (model.PublicUser, error) {
	a.logger.Debug("Auth service: registering user", "email", email)

	_, err := a.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		a.logger.Info("Auth service: email already registered", "email", email)
		return model.PublicUser{}, model.NewConflictError("Email already registered")
	case !errors.Is(err, model.ErrNotFound):
		a.logger.Error("Auth service: failed to get user by email", "email", email, "error", err.Error())
		return model.PublicUser{}, model.NewInternalError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return model.PublicUser{}, model.NewValidationError("Password must be between 6 and 72 characters")
	}
	if err != nil {
		a.logger.Error("Auth service: failed to hash password", "email", email, "error", err.Error())
		return model.PublicUser{}, model.NewInternalError(err)
	}

	user, err := a.users.CreateUser(ctx, model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.PublicUser{}, model.NewConflictError("Email already registered")
		}
		a.logger.Error("Auth service: failed to create user", "email", email, "error", err.Error())
		return model.PublicUser{}, model.NewInternalError(err)
	}

	a.logger.Info("Auth service: user registered", "user_id", user.ID)
	return user.Public(), nil
}

// Login verifies the credentials and issues a session token. Unknown email
// and wrong password produce the same error.
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			a.logger.Error("Auth service: failed to get user by email", "email", email, "error", err.Error())
			return Session{}, model.NewInternalError(err)
		}
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return Session{}, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Info("Auth service: password mismatch", "user_id", user.ID)
		return Session{}, model.NewInvalidCredentialsError()
	}

	token, err := a.tokens.Issue(model.Claims{ID: user.ID, Name: user.Name, Email: user.Email})
	if err != nil {
		a.logger.Error("Auth service: failed to issue token", "user_id", user.ID, "error", err.Error())
		return Session{}, model.NewInternalError(err)
	}

	return Session{User: user.Public(), Token: token}, nil
}

// Me returns the public projection of the session's user.
func (a *Auth) Me(ctx context.Context, claims model.Claims) (model.PublicUser, error) {
	user, err := a.users.GetUserByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.PublicUser{}, model.NewUnauthorizedError(err)
		}
		a.logger.Error("Auth service: failed to get user by id", "user_id", claims.ID, "error", err.Error())
		return model.PublicUser{}, model.NewInternalError(err)
	}
	return user.Public(), nil
}
