package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"taskflow/internal/logger"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

type taskRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
	Category    string `json:"category" form:"category"`
	DueDate     string `json:"due_date" form:"due_date"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Category:    r.Category,
		DueDate:     r.DueDate,
	}
}

type taskResponse struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      string     `json:"priority"`
	PriorityClass string     `json:"priority_class"`
	Category      string     `json:"category"`
	CategorySlug  string     `json:"category_slug"`
	Completed     bool       `json:"completed"`
	Overdue       bool       `json:"overdue"`
	DueDate       *time.Time `json:"due_date"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toTaskResponse(t *model.Task, now time.Time) taskResponse {
	return taskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Priority:      string(t.Priority),
		PriorityClass: t.Priority.CSSClass(),
		Category:      t.Category,
		CategorySlug:  model.CategorySlug(t.Category),
		Completed:     t.Completed,
		Overdue:       t.Overdue(now),
		DueDate:       t.DueDate,
		CompletedAt:   t.CompletedAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

type TaskHandler struct {
	tasks      *service.TaskService
	categories *service.CategoryService
	now        func() time.Time
}

func NewTaskHandler(tasks *service.TaskService, categories *service.CategoryService) *TaskHandler {
	return &TaskHandler{tasks: tasks, categories: categories, now: time.Now}
}

// List supports ?category=<slug>&status=active|completed|overdue.
func (h *TaskHandler) List(c *fiber.Ctx) error {
	tasks, err := h.tasks.ListByOwner(c.UserContext(), currentUserID(c), service.TaskFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
	})
	if err != nil {
		return err
	}

	now := h.now()
	resp := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toTaskResponse(&tasks[i], now))
	}
	return successResponse(c, "", resp)
}

func (h *TaskHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tasks.Stats(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return successResponse(c, "", stats)
}

func (h *TaskHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return successResponse(c, "", categories)
}

func (h *TaskHandler) Create(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req taskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.Create(ctx, currentUserID(c), req.input())
	if err != nil {
		logger.WarnContext(ctx, "task creation failed", "user_id", currentUserID(c), "error", err)
		return err
	}
	return createdResponse(c, "Task created successfully!", toTaskResponse(task, h.now()))
}

func (h *TaskHandler) Get(c *fiber.Ctx) error {
	taskID, err := taskIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.tasks.Get(c.UserContext(), taskID, currentUserID(c))
	if err != nil {
		return err
	}
	return successResponse(c, "", toTaskResponse(task, h.now()))
}

func (h *TaskHandler) Update(c *fiber.Ctx) error {
	taskID, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req taskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.Update(c.UserContext(), taskID, currentUserID(c), req.input())
	if err != nil {
		return err
	}
	return successResponse(c, "Task updated successfully!", toTaskResponse(task, h.now()))
}

func (h *TaskHandler) Toggle(c *fiber.Ctx) error {
	taskID, err := taskIDParam(c)
	if err != nil {
		return err
	}

	completed, err := h.tasks.ToggleComplete(c.UserContext(), taskID, currentUserID(c))
	if err != nil {
		return err
	}

	message := "Task marked as incomplete."
	if completed {
		message = "Task marked as complete."
	}
	return successResponse(c, message, fiber.Map{"id": taskID, "completed": completed})
}

func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	taskID, err := taskIDParam(c)
	if err != nil {
		return err
	}

	if err := h.tasks.Delete(c.UserContext(), taskID, currentUserID(c)); err != nil {
		return err
	}
	return successResponse(c, "Task deleted successfully", nil)
}

func taskIDParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid task ID")
	}
	return uint(id), nil
}
