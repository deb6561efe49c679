// Package auth handles accounts and the identity a task operation runs as.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/rs/zerolog/log"
)

// GuestName is the account name of the shared guest principal.
const GuestName = "guest"

// usernameRule keeps names usable inside report file names.
const usernameRule = "required,max=64,username"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)

var (
	// ErrInvalidCredentials is returned when a login doesn't match a stored account.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists is returned when registering a username that is already taken.
	ErrUserExists = errors.New("username already exists")
	// ErrInvalidAccount is returned when a username or password is unusable.
	ErrInvalidAccount = errors.New("invalid account")
)

// Principal is who an operation acts on behalf of. AllTasks grants visibility and mutation rights over
// every task regardless of owner.
type Principal struct {
	Name     string
	AllTasks bool
}

// Guest returns the guest principal.
func Guest() Principal {
	return Principal{Name: GuestName, AllTasks: true}
}

// User returns a regular principal for the named user.
func User(name string) Principal {
	return Principal{Name: name}
}

// CanAccess reports whether p may see and mutate the task.
func (p Principal) CanAccess(task *db.Task) bool {
	return p.AllTasks || task.CreatedBy == p.Name
}

// HashPassword returns the hex sha-256 digest stored in the accounts file.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))

	return hex.EncodeToString(sum[:])
}

// Service registers and authenticates accounts.
type Service struct {
	repo     *db.Repository
	validate *validator.Validate
}

// NewService returns a Service storing accounts in repo.
func NewService(repo *db.Repository) *Service {
	validate := validator.New()

	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return &Service{repo: repo, validate: validate}
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, username, password string) (Principal, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return Principal{}, fmt.Errorf("%w: username and password are required", ErrInvalidAccount)
	}

	if err := s.validate.Var(username, usernameRule); err != nil {
		return Principal{}, fmt.Errorf("%w: username may only contain letters, digits, '.', '_' and '-' (64 at most)",
			ErrInvalidAccount)
	}

	if strings.EqualFold(username, GuestName) {
		return Principal{}, fmt.Errorf("%w: '%s' is reserved", ErrInvalidAccount, GuestName)
	}

	err := s.repo.UpdateAccounts(ctx, func(accounts map[string]db.Account) error {
		if _, ok := accounts[username]; ok {
			return fmt.Errorf("error registering %s: %w", username, ErrUserExists)
		}

		accounts[username] = db.Account{Password: HashPassword(password)}

		return nil
	})
	if err != nil {
		return Principal{}, err
	}

	log.Info().Str("user", username).Msg("registered account")

	return User(username), nil
}

// Login checks the password of an existing account.
func (s *Service) Login(ctx context.Context, username, password string) (Principal, error) {
	username = strings.TrimSpace(username)

	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return Principal{}, err
	}

	account, ok := accounts[username]
	if !ok || account.Password != HashPassword(password) {
		log.Warn().Str("user", username).Msg("failed login")

		return Principal{}, ErrInvalidCredentials
	}

	return User(username), nil
}
