package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"taskflow/internal/events"
	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/validation"
)

// TaskInput is the raw task form. Empty Priority means medium, empty
// Category means general and empty DueDate means no due date. Any other
// priority must be one of the exact lowercase level names.
type TaskInput struct {
	Title       string
	Description string
	Priority    string
	Category    string
	DueDate     string
}

func (in TaskInput) fields() map[string]string {
	priority := in.Priority
	if priority == "" {
		priority = string(model.PriorityMedium)
	}
	return map[string]string{
		validation.FieldTitle:       in.Title,
		validation.FieldDescription: in.Description,
		validation.FieldPriority:    priority,
		validation.FieldCategory:    in.Category,
		validation.FieldDueDate:     in.DueDate,
	}
}

// Task list status filters.
const (
	StatusAll       = ""
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
)

// TaskFilter narrows ListByOwner. Category is matched by slug.
type TaskFilter struct {
	Category string
	Status   string
}

// Stats are the dashboard counters.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
	DueSoon   int `json:"due_soon"`
}

// DueSoonWindow is how far ahead a due date counts as "due soon".
const DueSoonWindow = 24 * time.Hour

// TaskService wraps task-related business logic. Every call is scoped to
// the owner passed in; a task of another user looks exactly like a missing one.
type TaskService struct {
	tasks     *repository.TaskRepository
	tx        *repository.Transactor
	publisher events.Publisher
	now       func() time.Time
}

func NewTaskService(tasks *repository.TaskRepository, tx *repository.Transactor, publisher events.Publisher, loc *time.Location) *TaskService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{
		tasks:     tasks,
		tx:        tx,
		publisher: publisher,
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

func (s *TaskService) Create(ctx context.Context, ownerID uint, input TaskInput) (*model.Task, error) {
	now := s.now()
	task := model.Task{UserID: ownerID}
	if err := s.apply(&task, input, now); err != nil {
		return nil, err
	}

	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		return s.tasks.WithTx(tx).Create(ctx, &task)
	})
	if err != nil {
		return nil, persistence("create task", err)
	}

	logger.InfoContext(ctx, "task created", "task_id", task.ID, "user_id", ownerID)
	publish(ctx, s.publisher, events.Event{Type: events.TaskCreated, UserID: ownerID, TaskID: task.ID, At: now})
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, taskID, ownerID uint) (*model.Task, error) {
	task, err := s.tasks.FindOwned(ctx, ownerID, taskID)
	if err != nil {
		return nil, ownedErr("get task", err)
	}
	return task, nil
}

// Update replaces the editable fields. Completion is left alone.
func (s *TaskService) Update(ctx context.Context, taskID, ownerID uint, input TaskInput) (*model.Task, error) {
	now := s.now()
	var draft model.Task
	if err := s.apply(&draft, input, now); err != nil {
		return nil, err
	}

	var task *model.Task
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)
		found, err := repo.FindOwned(ctx, ownerID, taskID)
		if err != nil {
			return err
		}
		found.Title = draft.Title
		found.Description = draft.Description
		found.Priority = draft.Priority
		found.Category = draft.Category
		found.DueDate = draft.DueDate
		task = found
		return repo.Save(ctx, found)
	})
	if err != nil {
		return nil, ownedErr("update task", err)
	}

	publish(ctx, s.publisher, events.Event{Type: events.TaskUpdated, UserID: ownerID, TaskID: taskID, At: now})
	return task, nil
}

// ToggleComplete flips the completion state and returns the new value.
func (s *TaskService) ToggleComplete(ctx context.Context, taskID, ownerID uint) (bool, error) {
	now := s.now()
	var completed bool
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)
		task, err := repo.FindOwned(ctx, ownerID, taskID)
		if err != nil {
			return err
		}
		completed = task.Toggle(now)
		return repo.Save(ctx, task)
	})
	if err != nil {
		return false, ownedErr("toggle task", err)
	}

	eventType := events.TaskReopened
	if completed {
		eventType = events.TaskCompleted
	}
	publish(ctx, s.publisher, events.Event{Type: eventType, UserID: ownerID, TaskID: taskID, At: now})
	return completed, nil
}

func (s *TaskService) Delete(ctx context.Context, taskID, ownerID uint) error {
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		return s.tasks.WithTx(tx).DeleteOwned(ctx, ownerID, taskID)
	})
	if err != nil {
		return ownedErr("delete task", err)
	}

	logger.InfoContext(ctx, "task deleted", "task_id", taskID, "user_id", ownerID)
	publish(ctx, s.publisher, events.Event{Type: events.TaskDeleted, UserID: ownerID, TaskID: taskID, At: s.now()})
	return nil
}

// ListByOwner returns the owner's tasks newest first.
func (s *TaskService) ListByOwner(ctx context.Context, ownerID uint, filter TaskFilter) ([]model.Task, error) {
	var completed *bool
	switch strings.ToLower(strings.TrimSpace(filter.Status)) {
	case StatusAll, "all":
	case StatusActive, StatusOverdue:
		v := false
		completed = &v
	case StatusCompleted:
		v := true
		completed = &v
	default:
		return nil, newValidationError([]string{"Invalid status filter."})
	}

	tasks, err := s.tasks.ListByOwner(ctx, ownerID, completed)
	if err != nil {
		return nil, persistence("list tasks", err)
	}

	overdueOnly := strings.EqualFold(strings.TrimSpace(filter.Status), StatusOverdue)
	category := strings.TrimSpace(filter.Category)
	if !overdueOnly && category == "" {
		return tasks, nil
	}

	now := s.now()
	wanted := model.CategorySlug(category)
	filtered := tasks[:0]
	for _, task := range tasks {
		if overdueOnly && !task.Overdue(now) {
			continue
		}
		if category != "" && model.CategorySlug(task.Category) != wanted {
			continue
		}
		filtered = append(filtered, task)
	}
	return filtered, nil
}

func (s *TaskService) Stats(ctx context.Context, ownerID uint) (Stats, error) {
	tasks, err := s.tasks.ListByOwner(ctx, ownerID, nil)
	if err != nil {
		return Stats{}, persistence("task stats", err)
	}

	now := s.now()
	stats := Stats{Total: len(tasks)}
	for _, task := range tasks {
		switch {
		case task.Completed:
			stats.Completed++
		case task.Overdue(now):
			stats.Pending++
			stats.Overdue++
		default:
			stats.Pending++
			if task.DueSoon(now, DueSoonWindow) {
				stats.DueSoon++
			}
		}
	}
	return stats, nil
}

// apply validates input and copies it onto task.
func (s *TaskService) apply(task *model.Task, input TaskInput, now time.Time) error {
	fields := input.fields()
	if ok, reasons := validation.ValidateTaskFields(fields, now); !ok {
		return newValidationError(reasons)
	}

	due, err := validation.ParseDueDate(fields[validation.FieldDueDate], now.Location())
	if err != nil {
		return newValidationError([]string{"Invalid date format. Use YYYY-MM-DD HH:MM."})
	}
	priority, _ := model.ParsePriority(fields[validation.FieldPriority])

	task.Title = strings.TrimSpace(input.Title)
	task.Description = strings.TrimSpace(input.Description)
	task.Priority = priority
	task.Category = model.NormalizeCategory(input.Category)
	task.DueDate = due
	return nil
}

func ownedErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFoundOrUnauthorized
	}
	return persistence(op, err)
}
