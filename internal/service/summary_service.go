package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// Digest is a snapshot of an owner's open work.
type Digest struct {
	At      time.Time
	Overdue []model.Task
	DueSoon []model.Task
	Open    []model.Task
	Done    int
}

// SummaryService builds human-readable task reports for chat.
type SummaryService struct {
	tasks *repository.TaskRepository
}

func NewSummaryService(tasks *repository.TaskRepository) *SummaryService {
	return &SummaryService{tasks: tasks}
}

// Digest sorts the owner's open tasks into overdue, due within a day, and
// the rest. Each group is ordered by due date, undated tasks last.
func (s *SummaryService) Digest(ctx context.Context, ownerID uint, now time.Time) (Digest, error) {
	tasks, err := s.tasks.ListByOwner(ctx, ownerID, nil)
	if err != nil {
		return Digest{}, persistence("build digest", err)
	}

	d := Digest{At: now}
	for _, task := range tasks {
		switch {
		case task.Completed:
			d.Done++
		case task.Overdue(now):
			d.Overdue = append(d.Overdue, task)
		case task.DueSoon(now, DueSoonWindow):
			d.DueSoon = append(d.DueSoon, task)
		default:
			d.Open = append(d.Open, task)
		}
	}
	byDueDate(d.Overdue)
	byDueDate(d.DueSoon)
	byDueDate(d.Open)
	return d, nil
}

// Render formats the digest as Telegram HTML.
func (s *SummaryService) Render(d Digest) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Task report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", d.At.Format("2006-01-02 15:04")))

	if len(d.Overdue)+len(d.DueSoon)+len(d.Open) == 0 {
		builder.WriteString("\n🎉 Nothing open. ")
		builder.WriteString(fmt.Sprintf("%d completed.", d.Done))
		return builder.String()
	}

	writeGroup(&builder, "⚠️ <b>Overdue</b>", d.Overdue, d.At)
	writeGroup(&builder, "⏳ <b>Due within 24h</b>", d.DueSoon, d.At)
	writeGroup(&builder, "🟢 <b>Open</b>", d.Open, d.At)

	builder.WriteString(fmt.Sprintf("\n✅ Completed: %d", d.Done))
	return strings.TrimSpace(builder.String())
}

func writeGroup(b *strings.Builder, header string, tasks []model.Task, now time.Time) {
	if len(tasks) == 0 {
		return
	}
	b.WriteString("\n" + header + "\n")
	for _, task := range tasks {
		b.WriteString(formatTask(task, now))
	}
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d %s", task.ID, html.EscapeString(task.Title)))
	sb.WriteString(fmt.Sprintf(" <i>(%s, %s)</i>", html.EscapeString(task.Category), task.Priority))

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, <b>overdue</b>", d.Format("2006-01-02 15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s", d.Format("2006-01-02 15:04")))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}

func byDueDate(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case tasks[i].DueDate == nil && tasks[j].DueDate == nil:
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		case tasks[i].DueDate == nil:
			return false
		case tasks[j].DueDate == nil:
			return true
		default:
			return tasks[i].DueDate.Before(*tasks[j].DueDate)
		}
	})
}
