package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/events"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

const chatID int64 = 4242

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	acked    []string
	updates  chan tgbotapi.Update
	stopOnce sync.Once
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.acked = append(f.acked, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.stopOnce.Do(func() { close(f.updates) })
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no message sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type testEnv struct {
	api   *fakeAPI
	bot   *Bot
	users *service.UserService
	tasks *service.TaskService
	links *service.LinkService
}

func setupBot(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	tx := repository.NewTransactor(db)

	users := service.NewUserService(userRepo, service.NewPasswordHasher(bcrypt.MinCost), events.Noop{})
	tasks := service.NewTaskService(taskRepo, tx, events.Noop{}, time.UTC)
	links, err := service.NewLinkService(repository.NewLinkCodeRepository(db), userRepo, time.Minute)
	require.NoError(t, err)

	api := newFakeAPI()
	b := newBot(api, Deps{
		Users:      users,
		Links:      links,
		Tasks:      tasks,
		Categories: service.NewCategoryService(repository.NewCategoryRepository(db)),
		Summary:    service.NewSummaryService(taskRepo),
		Location:   time.UTC,
	})
	return &testEnv{api: api, bot: b, users: users, tasks: tasks, links: links}
}

// linkedUser registers an account and links the test chat to it.
func (e *testEnv) linkedUser(t *testing.T) *model.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.users.Register(ctx, service.RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
		Password:  "abc123",
	})
	require.NoError(t, err)

	code, err := e.links.Issue(ctx, user.ID)
	require.NoError(t, err)
	e.send(t, "/link "+code.Code)
	assert.Contains(t, e.api.last(t).Text, "Linked to <b>alice</b>")
	return user
}

func (e *testEnv) send(t *testing.T, text string) {
	t.Helper()
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID, FirstName: "Alice"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if i := strings.IndexByte(text, ' '); i > 0 {
			length = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	e.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (e *testEnv) press(t *testing.T, data string) {
	t.Helper()
	e.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID, Type: "private"}},
		Data:    data,
	}})
}

func (e *testEnv) createTask(t *testing.T, ownerID uint, title string) *model.Task {
	t.Helper()
	task, err := e.tasks.Create(context.Background(), ownerID, service.TaskInput{
		Title:       title,
		Description: "details",
		Category:    "Work",
	})
	require.NoError(t, err)
	return task
}

func TestUnlinkedChatIsAskedToLink(t *testing.T) {
	env := setupBot(t)

	for _, cmd := range []string{"/tasks", "/newtask", "/report", "/categories", "/done 1"} {
		env.send(t, cmd)
		assert.Contains(t, env.api.last(t).Text, "not linked", cmd)
	}
	assert.Nil(t, env.bot.getConversation(chatID))
}

func TestLink_InvalidCode(t *testing.T) {
	env := setupBot(t)

	env.send(t, "/link NOPE1234")
	assert.Contains(t, env.api.last(t).Text, "invalid or has expired")

	env.send(t, "/link")
	assert.Contains(t, env.api.last(t).Text, "/link CODE")
}

func TestStart_GreetsLinkedUser(t *testing.T) {
	env := setupBot(t)
	env.linkedUser(t)

	env.send(t, "/start")
	text := env.api.last(t).Text
	assert.Contains(t, text, "Hi, Alice!")
	assert.Contains(t, text, "/newtask")
}

func TestNewTaskConversation(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)
	due := time.Now().UTC().Add(72 * time.Hour).Format(dueLayout)

	env.send(t, "/newtask")
	assert.Equal(t, stageTitle, env.bot.getConversation(chatID).stage)

	env.send(t, "Write report")
	env.send(t, "Quarterly numbers")
	env.send(t, "high")
	env.send(t, "Work")
	env.send(t, due)

	assert.Nil(t, env.bot.getConversation(chatID))
	text := env.api.last(t).Text
	assert.Contains(t, text, "Task created successfully!")
	assert.Contains(t, text, "Write report")
	assert.Contains(t, text, "High")

	tasks, err := env.tasks.ListByOwner(context.Background(), user.ID, service.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, "Work", tasks[0].Category)
	require.NotNil(t, tasks[0].DueDate)
}

func TestNewTaskConversation_SkipsUseDefaults(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)

	env.send(t, "/newtask")
	env.send(t, "Buy milk")
	env.send(t, "Two litres")
	env.send(t, btnSkip)
	env.send(t, "skip")
	env.send(t, "-")

	tasks, err := env.tasks.ListByOwner(context.Background(), user.ID, service.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.PriorityMedium, tasks[0].Priority)
	assert.Equal(t, model.DefaultCategory, tasks[0].Category)
	assert.Nil(t, tasks[0].DueDate)
}

func TestNewTaskConversation_ListsEveryViolation(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)

	env.send(t, "/newtask")
	env.send(t, strings.Repeat("x", 201))
	env.send(t, "details")
	env.send(t, "urgent")
	env.send(t, "skip")
	env.send(t, "tomorrow")

	text := env.api.last(t).Text
	assert.Contains(t, text, "The task was not saved")
	assert.Contains(t, text, "Title must be under 200 characters long.")
	assert.Contains(t, text, "Invalid date format. Use YYYY-MM-DD HH:MM.")
	assert.GreaterOrEqual(t, strings.Count(text, "• "), 3)
	assert.Nil(t, env.bot.getConversation(chatID))

	tasks, err := env.tasks.ListByOwner(context.Background(), user.ID, service.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestCancelStopsConversation(t *testing.T) {
	env := setupBot(t)
	env.linkedUser(t)

	env.send(t, "/newtask")
	env.send(t, "Title")
	env.send(t, btnCancelDialog)

	assert.Nil(t, env.bot.getConversation(chatID))
	assert.Contains(t, env.api.last(t).Text, "Cancelled")
}

func TestTaskList_ShowsOpenTasksWithButtons(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)
	open := env.createTask(t, user.ID, "Open task")
	done := env.createTask(t, user.ID, "Done task")
	_, err := env.tasks.ToggleComplete(context.Background(), done.ID, user.ID)
	require.NoError(t, err)

	env.send(t, "/tasks")
	msg := env.api.last(t)
	assert.Contains(t, msg.Text, "Open task")
	assert.NotContains(t, msg.Text, "Done task")

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	row := markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, cbCompletePrefix+strconv.Itoa(int(open.ID)), *row[0].CallbackData)
	assert.Equal(t, cbDeletePrefix+strconv.Itoa(int(open.ID)), *row[1].CallbackData)
}

func TestCallbackComplete_WithConfirmation(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)
	task := env.createTask(t, user.ID, "Call mom")

	env.press(t, cbCompletePrefix+strconv.Itoa(int(task.ID)))
	assert.Contains(t, env.api.acked, "cb-"+cbCompletePrefix+strconv.Itoa(int(task.ID)))
	assert.Contains(t, env.api.last(t).Text, "Mark task")

	req, ok := env.bot.getConfirmation(chatID)
	require.True(t, ok)
	assert.Equal(t, actionComplete, req.action)

	env.send(t, btnConfirm)
	_, ok = env.bot.getConfirmation(chatID)
	assert.False(t, ok)

	got, err := env.tasks.Get(context.Background(), task.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Contains(t, strings.Join(env.api.texts(), "\n"), "marked as complete")
}

func TestCallbackDelete_CancelKeepsTask(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)
	task := env.createTask(t, user.ID, "Keep me")

	env.press(t, cbDeletePrefix+strconv.Itoa(int(task.ID)))
	env.send(t, btnCancel)

	_, err := env.tasks.Get(context.Background(), task.ID, user.ID)
	require.NoError(t, err)
	assert.Contains(t, env.api.last(t).Text, "nothing changed")

	env.press(t, cbDeletePrefix+strconv.Itoa(int(task.ID)))
	env.send(t, "yes")
	_, err = env.tasks.Get(context.Background(), task.ID, user.ID)
	assert.ErrorIs(t, err, service.ErrNotFoundOrUnauthorized)
}

func TestDoneAndDelete_AreOwnerScoped(t *testing.T) {
	env := setupBot(t)
	env.linkedUser(t)

	other, err := env.users.Register(context.Background(), service.RegisterInput{
		Username:  "bob",
		Email:     "bob@example.com",
		FirstName: "Bob",
		LastName:  "Jones",
		Password:  "abc123",
	})
	require.NoError(t, err)
	foreign := env.createTask(t, other.ID, "Bob's task")
	id := strconv.Itoa(int(foreign.ID))

	env.send(t, "/done "+id)
	assert.Equal(t, msgTaskNotFound, env.api.last(t).Text)
	env.send(t, "/delete "+id)
	assert.Equal(t, msgTaskNotFound, env.api.last(t).Text)

	got, err := env.tasks.Get(context.Background(), foreign.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestDone_ArgumentErrors(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)
	task := env.createTask(t, user.ID, "Stretch")

	env.send(t, "/done")
	assert.Contains(t, env.api.last(t).Text, "Add the task ID")
	env.send(t, "/done abc")
	assert.Contains(t, env.api.last(t).Text, "must be a number")

	env.send(t, "/done "+strconv.Itoa(int(task.ID)))
	assert.Contains(t, env.api.last(t).Text, "marked as complete")
	env.send(t, "/done "+strconv.Itoa(int(task.ID)))
	assert.Contains(t, env.api.last(t).Text, "already complete")
}

func TestCategoriesAndReport(t *testing.T) {
	env := setupBot(t)
	user := env.linkedUser(t)
	env.createTask(t, user.ID, "Deploy <v2>")

	env.send(t, "/categories")
	assert.Contains(t, env.api.last(t).Text, "💼 Work · 1 open of 1")

	env.send(t, "/report")
	text := env.api.last(t).Text
	assert.Contains(t, text, "Task report")
	assert.Contains(t, text, "Deploy &lt;v2&gt;")
}

func TestMenuAliasAndUnknownInput(t *testing.T) {
	env := setupBot(t)
	env.linkedUser(t)

	env.send(t, menuLabelHelp)
	assert.Contains(t, env.api.last(t).Text, "Commands")

	env.send(t, "hello there")
	assert.Contains(t, env.api.last(t).Text, "/help")

	env.send(t, "/nope")
	assert.Contains(t, env.api.last(t).Text, "Unknown command")
}

func TestGroupChatsAreIgnored(t *testing.T) {
	env := setupBot(t)

	env.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: chatID},
		Chat: &tgbotapi.Chat{ID: -100, Type: "group"},
		Text: "hi",
	}})
	assert.Empty(t, env.api.texts())
}

func TestStart_StopsOnCancel(t *testing.T) {
	env := setupBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.bot.Start(ctx) }()

	env.api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: chatID},
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestCategoryKeyboard_DedupesAndCaps(t *testing.T) {
	kb := categoryKeyboard([]string{"work", "Errands", "Home", "Garden", "Car"})

	var labels []string
	for _, row := range kb.Keyboard[:len(kb.Keyboard)-1] {
		for _, btn := range row {
			labels = append(labels, btn.Text)
		}
	}
	assert.Equal(t, []string{"work", "Errands", "Home", "Garden", "Car", "Personal"}, labels)
	assert.True(t, kb.OneTimeKeyboard)
}
