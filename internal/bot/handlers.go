package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
)

const (
	msgNotLinked = "🔗 This chat is not linked to a TaskFlow account yet.\n" +
		"Create a link code in the app and send it here: <code>/link CODE</code>"
	msgTaskNotFound = "Task not found."
	msgInternal     = "Something went wrong. Please try again later."
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.ByTelegramID(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return b.sendText(msg.Chat.ID, "👋 Hi! I'm the TaskFlow bot.\n\n"+msgNotLinked)
		}
		return b.replyError(ctx, msg.Chat.ID, err)
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>Your TaskFlow tasks are one message away.</b>\n\n%s",
		escape(user.FirstName), commandList)
	return b.sendText(msg.Chat.ID, text)
}

const commandList = "• /newtask: add a task step by step\n" +
	"• /tasks: open tasks with complete and delete buttons\n" +
	"• /done &lt;id&gt;: mark a task complete, e.g. /done 3\n" +
	"• /delete &lt;id&gt;: delete a task\n" +
	"• /categories: your categories\n" +
	"• /report: overdue and upcoming tasks\n" +
	"• /link &lt;code&gt;: link this chat to your account\n" +
	"• /cancel: stop the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+commandList)
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	code := strings.TrimSpace(msg.CommandArguments())
	if code == "" {
		return b.sendText(msg.Chat.ID, "Send the code from the app: <code>/link CODE</code>")
	}

	user, err := b.links.Link(ctx, code, msg.From.ID)
	if err != nil {
		if errors.Is(err, service.ErrLinkCodeInvalid) {
			return b.sendText(msg.Chat.ID, "That code is invalid or has expired. Create a new one in the app.")
		}
		return b.replyError(ctx, msg.Chat.ID, err)
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Linked to <b>%s</b>. Try /tasks.", escape(user.Username)))
}

// linkedUser resolves the account of the sender. When the chat is not
// linked it tells the sender how to link and returns nil.
func (b *Bot) linkedUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*model.User, error) {
	user, err := b.users.ByTelegramID(ctx, from.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return nil, b.sendText(chatID, msgNotLinked)
		}
		return nil, b.replyError(ctx, chatID, err)
	}
	return user, nil
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
	if user == nil {
		return err
	}

	digest, err := b.summary.Digest(ctx, user.ID, b.now())
	if err != nil {
		return b.replyError(ctx, msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, b.summary.Render(digest))
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
	if user == nil {
		return err
	}

	categories, err := b.categories.List(ctx, user.ID)
	if err != nil {
		return b.replyError(ctx, msg.Chat.ID, err)
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet. They appear as you add tasks.")
	}

	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s · %d open of %d\n", categoryLabel(cat.Name), cat.Open, cat.Total))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
	if user == nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.tasks.ListByOwner(ctx, user.ID, service.TaskFilter{Status: service.StatusActive})
	if err != nil {
		return b.replyError(ctx, chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No open tasks. Add one with /newtask.")
	}

	text, buttons := renderTaskList(tasks, b.now())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
	if user == nil {
		return err
	}

	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle, userID: user.ID})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what is the title?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageTitle:
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ <b>Step 2:</b> add a short description.", cancelKeyboard())
	case stageDescription:
		state.input.Description = text
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "🚦 <b>Step 3:</b> priority? Medium if you skip.", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			state.input.Priority = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("🏷 <b>Step 4:</b> pick a category or type your own. %s if you skip.", categoryLabel(model.DefaultCategory)),
			categoryKeyboard(b.categoryNames(ctx, state.userID)))
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"⏰ <b>Step 5:</b> due date as <code>2026-11-30 18:00</code>, or skip.", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			state.input.DueDate = text
		}
		err := b.finishTaskCreation(ctx, msg.Chat.ID, state)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, state *conversationState) error {
	task, err := b.tasks.Create(ctx, state.userID, state.input)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return b.sendText(chatID,
				"❌ <b>The task was not saved</b>\n"+bulletList(verr.Reasons)+"\nStart again with /newtask.")
		}
		return b.replyError(ctx, chatID, err)
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Task created successfully!</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority.Label()))
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", categoryLabel(task.Category)))
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.now().Location()).Format(dueLayout)))
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) categoryNames(ctx context.Context, userID uint) []string {
	categories, err := b.categories.List(ctx, userID)
	if err != nil {
		logger.WarnContext(ctx, "list categories for keyboard", "user_id", userID, "error", err)
		return nil
	}
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		names = append(names, cat.Name)
	}
	return names
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(msg, "/done 12")
	if !ok {
		return err
	}
	user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
	if user == nil {
		return err
	}
	return b.completeTask(ctx, msg.Chat.ID, user, taskID, false)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok, err := b.commandTaskID(msg, "/delete 12")
	if !ok {
		return err
	}
	user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
	if user == nil {
		return err
	}
	return b.deleteTask(ctx, msg.Chat.ID, user, taskID, false)
}

// commandTaskID parses the task id argument. ok is false when the sender
// has already been told what is wrong.
func (b *Bot) commandTaskID(msg *tgbotapi.Message, example string) (uint, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return 0, false, b.sendText(msg.Chat.ID, "Add the task ID: "+example)
	}
	id, err := strconv.ParseUint(args, 10, 64)
	if err != nil || id == 0 {
		return 0, false, b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	return uint(id), true, nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.WarnContext(ctx, "callback ack", "error", err)
	}

	var (
		action confirmationAction
		prefix string
	)
	switch {
	case strings.HasPrefix(cb.Data, cbCompletePrefix):
		action, prefix = actionComplete, cbCompletePrefix
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		action, prefix = actionDelete, cbDeletePrefix
	default:
		return nil
	}

	taskID, err := parseTaskID(cb.Data, prefix)
	if err != nil {
		return nil
	}
	logger.InfoContext(ctx, "bot callback", "telegram_id", cb.From.ID, "data", cb.Data)

	chatID := cb.Message.Chat.ID
	user, err := b.linkedUser(ctx, chatID, cb.From)
	if user == nil {
		return err
	}
	return b.askConfirmation(ctx, chatID, cb.From.ID, user, taskID, action)
}

func (b *Bot) askConfirmation(ctx context.Context, chatID, telegramID int64, user *model.User, taskID uint, action confirmationAction) error {
	task, err := b.tasks.Get(ctx, taskID, user.ID)
	if err != nil {
		return b.replyError(ctx, chatID, err)
	}

	var text string
	if action == actionDelete {
		text = fmt.Sprintf("Delete task \"%s\" (#%d)?", escape(task.Title), task.ID)
	} else {
		if task.Completed {
			return b.sendText(chatID, "That task is already complete.")
		}
		text = fmt.Sprintf("Mark task \"%s\" (#%d) as complete?", escape(task.Title), task.ID)
	}

	b.clearConversation(telegramID)
	b.setConfirmation(telegramID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.linkedUser(ctx, msg.Chat.ID, msg.From)
		if user == nil {
			return err
		}
		if req.action == actionDelete {
			return b.deleteTask(ctx, msg.Chat.ID, user, req.taskID, true)
		}
		return b.completeTask(ctx, msg.Chat.ID, user, req.taskID, true)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "OK, nothing changed.")
	default:
		prompt := "Confirm or cancel completing the task."
		if req.action == actionDelete {
			prompt = "Confirm or cancel deleting the task."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

// completeTask marks the task complete. It never reopens: the bot has no
// undo, so a completed task is reported as such.
func (b *Bot) completeTask(ctx context.Context, chatID int64, user *model.User, taskID uint, refresh bool) error {
	task, err := b.tasks.Get(ctx, taskID, user.ID)
	if err != nil {
		return b.replyError(ctx, chatID, err)
	}
	if task.Completed {
		return b.sendText(chatID, "That task is already complete.")
	}

	if _, err := b.tasks.ToggleComplete(ctx, taskID, user.ID); err != nil {
		return b.replyError(ctx, chatID, err)
	}

	if err := b.sendText(chatID, fmt.Sprintf("✅ \"%s\" marked as complete.", escape(task.Title))); err != nil {
		return err
	}
	if refresh {
		return b.sendTaskList(ctx, chatID, user)
	}
	return nil
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, user *model.User, taskID uint, refresh bool) error {
	task, err := b.tasks.Get(ctx, taskID, user.ID)
	if err != nil {
		return b.replyError(ctx, chatID, err)
	}
	if err := b.tasks.Delete(ctx, taskID, user.ID); err != nil {
		return b.replyError(ctx, chatID, err)
	}

	if err := b.sendText(chatID, fmt.Sprintf("🗑 \"%s\" deleted.", escape(task.Title))); err != nil {
		return err
	}
	if refresh {
		return b.sendTaskList(ctx, chatID, user)
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, msg)
	case strings.ToLower(menuLabelReport):
		return true, b.handleReport(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// replyError tells the sender what went wrong without leaking internals.
// Only a failed send is returned.
func (b *Bot) replyError(ctx context.Context, chatID int64, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return b.sendText(chatID, bulletList(verr.Reasons))
	case errors.Is(err, service.ErrNotFoundOrUnauthorized):
		return b.sendText(chatID, msgTaskNotFound)
	default:
		logger.ErrorContext(ctx, "bot request failed", "chat_id", chatID, "error", err)
		return b.sendText(chatID, msgInternal)
	}
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// sendText replies with the main menu keyboard, which also replaces any
// one-off keyboard of a finished dialog.
func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}
