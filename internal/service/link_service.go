package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

const (
	linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	linkCodeLength   = 8
)

// LinkService binds Telegram chats to accounts through one-time codes.
type LinkService struct {
	codes    *repository.LinkCodeRepository
	users    *repository.UserRepository
	ttl      time.Duration
	generate func() string
	now      func() time.Time
}

func NewLinkService(codes *repository.LinkCodeRepository, users *repository.UserRepository, ttl time.Duration) (*LinkService, error) {
	generate, err := nanoid.CustomASCII(linkCodeAlphabet, linkCodeLength)
	if err != nil {
		return nil, fmt.Errorf("init link code generator: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LinkService{codes: codes, users: users, ttl: ttl, generate: generate, now: time.Now}, nil
}

// Issue replaces any earlier code of the user with a fresh one.
func (s *LinkService) Issue(ctx context.Context, userID uint) (*model.LinkCode, error) {
	now := s.now()
	code := &model.LinkCode{
		Code:      s.generate(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.codes.Replace(ctx, code, now); err != nil {
		return nil, persistence("issue link code", err)
	}
	return code, nil
}

// Link consumes code and attaches the chat to its owner. A chat linked to
// another account moves over.
func (s *LinkService) Link(ctx context.Context, code string, telegramID int64) (*model.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrLinkCodeInvalid
	}

	found, err := s.codes.Consume(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkCodeInvalid
		}
		return nil, persistence("consume link code", err)
	}
	if found.Expired(s.now()) {
		return nil, ErrLinkCodeInvalid
	}

	if err := s.users.LinkTelegram(ctx, found.UserID, telegramID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkCodeInvalid
		}
		return nil, persistence("link telegram", err)
	}

	user, err := s.users.FindByID(ctx, found.UserID)
	if err != nil {
		return nil, persistence("get user", err)
	}
	logger.InfoContext(ctx, "telegram linked", "user_id", user.ID, "telegram_id", telegramID)
	return user, nil
}
