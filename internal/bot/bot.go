// Package bot is the Telegram front end. A chat works on the account it was
// linked to with a one-time code and goes through the same services as the
// HTTP API.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/logger"
	"taskflow/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stagePriority
	stageCategory
	stageDueDate
)

func (s conversationStage) String() string {
	switch s {
	case stageTitle:
		return "title"
	case stageDescription:
		return "description"
	case stagePriority:
		return "priority"
	case stageCategory:
		return "category"
	case stageDueDate:
		return "due_date"
	default:
		return "none"
	}
}

type conversationState struct {
	stage  conversationStage
	userID uint
	input  service.TaskInput
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the services the chat commands call into.
type Deps struct {
	Users      *service.UserService
	Links      *service.LinkService
	Tasks      *service.TaskService
	Categories *service.CategoryService
	Summary    *service.SummaryService
	Location   *time.Location
}

// Bot aggregates the Telegram API with services.
type Bot struct {
	api        botAPI
	users      *service.UserService
	links      *service.LinkService
	tasks      *service.TaskService
	categories *service.CategoryService
	summary    *service.SummaryService
	now        func() time.Time

	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.InfoContext(context.Background(), "bot authorized", "account", api.Self.UserName)
	return newBot(api, deps), nil
}

func newBot(api botAPI, deps Deps) *Bot {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:           api,
		users:         deps.Users,
		links:         deps.Links,
		tasks:         deps.Tasks,
		categories:    deps.Categories,
		summary:       deps.Summary,
		now:           func() time.Time { return time.Now().In(loc) },
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.InfoContext(ctx, "telegram polling started")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	logger.InfoContext(ctx, "telegram polling stopped")
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			logger.ErrorContext(ctx, "handle callback", "error", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			logger.ErrorContext(ctx, "handle message", "error", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. What next?")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logger.InfoContext(ctx, "bot command", "telegram_id", msg.From.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		logger.InfoContext(ctx, "conversation step", "telegram_id", msg.From.ID, "stage", state.stage.String())
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "link":
		return b.handleLink(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. What next?")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
