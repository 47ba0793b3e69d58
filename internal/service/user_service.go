package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskflow/internal/events"
	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/validation"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

func (in RegisterInput) normalized() RegisterInput {
	return RegisterInput{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Password:  in.Password,
	}
}

// UserService owns accounts: registration, login and removal.
type UserService struct {
	users     *repository.UserRepository
	hasher    *PasswordHasher
	publisher events.Publisher
	now       func() time.Time
}

func NewUserService(users *repository.UserRepository, hasher *PasswordHasher, publisher events.Publisher) *UserService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &UserService{users: users, hasher: hasher, publisher: publisher, now: time.Now}
}

// Register validates the form, rejects taken usernames and emails, and
// stores the account with a bcrypt hash of the password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	in := input.normalized()

	reasons := validation.ValidateRegistration(validation.Registration{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	})
	if len(in.Password) > MaxPasswordBytes {
		reasons = append(reasons, fmt.Sprintf("Password must be at most %d bytes long.", MaxPasswordBytes))
	}
	if len(reasons) > 0 {
		return nil, newValidationError(reasons)
	}

	if err := s.checkAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent sign-up.
			taken, err := s.users.EmailExists(ctx, in.Email)
			if err != nil {
				return nil, persistence("check email", err)
			}
			if taken {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrDuplicateUsername
		}
		return nil, persistence("register user", err)
	}

	logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *UserService) checkAvailable(ctx context.Context, username, email string) error {
	var errs []error

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return persistence("check username", err)
	}
	if taken {
		errs = append(errs, ErrDuplicateUsername)
	}

	taken, err = s.users.EmailExists(ctx, email)
	if err != nil {
		return persistence("check email", err)
	}
	if taken {
		errs = append(errs, ErrDuplicateEmail)
	}

	return errors.Join(errs...)
}

// Authenticate accepts a username or, when the input contains "@", an email.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)

	var (
		user *model.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.FindByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.users.FindByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Burn(password)
			return nil, ErrUnknownAccount
		}
		return nil, persistence("find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrBadPassword
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistence("get user", err)
	}
	return user, nil
}

// ByTelegramID finds the account a chat is linked to.
func (s *UserService) ByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistence("get user", err)
	}
	return user, nil
}

// DeleteAccount re-checks the password, then removes the user and every
// task and link code they own.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint, password string) (int64, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return 0, ErrBadPassword
	}
	return s.deleteUser(ctx, user)
}

// DeleteByUsername removes an account without a password check.
func (s *UserService) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, persistence("find user", err)
	}
	return s.deleteUser(ctx, user)
}

func (s *UserService) deleteUser(ctx context.Context, user *model.User) (int64, error) {
	removed, err := s.users.DeleteCascade(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, persistence("delete user", err)
	}

	logger.InfoContext(ctx, "user deleted", "user_id", user.ID, "tasks_removed", removed)
	publish(ctx, s.publisher, events.Event{Type: events.UserDeleted, UserID: user.ID, At: s.now()})
	return removed, nil
}

// publish sends e and only logs failures.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		logger.WarnContext(ctx, "publish event failed", "type", e.Type, "error", err)
	}
}
