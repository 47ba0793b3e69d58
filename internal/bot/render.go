package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

const dueLayout = "2006-01-02 15:04"

const (
	btnSkip         = "⏭️ Skip"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Back"
	btnCancelDialog = "⏪ Cancel input"

	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"

	menuLabelNewTask    = "➕ New task"
	menuLabelTasks      = "📋 Tasks"
	menuLabelCategories = "📂 Categories"
	menuLabelReport     = "📊 Report"
	menuLabelHelp       = "ℹ️ Help"
)

// maxCategoryButtons caps the suggestions on the category step.
const maxCategoryButtons = 6

var suggestedCategories = []string{"Work", "Personal", "Shopping", "Health"}

type categoryGroup struct {
	name  string
	tasks []model.Task
}

// renderTaskList groups open tasks by category and adds a complete and a
// delete button per task.
func renderTaskList(tasks []model.Task, now time.Time) (string, [][]tgbotapi.InlineKeyboardButton) {
	groups := make(map[string]*categoryGroup)
	order := make([]string, 0, len(tasks))
	for _, task := range tasks {
		key := model.CategorySlug(task.Category)
		group, ok := groups[key]
		if !ok {
			group = &categoryGroup{name: model.NormalizeCategory(task.Category)}
			groups[key] = group
			order = append(order, key)
		}
		group.tasks = append(group.tasks, task)
	}
	sort.Strings(order)

	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap a button to complete or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group.tasks, func(i, j int) bool {
			a, b := group.tasks[i], group.tasks[j]
			switch {
			case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
				return a.DueDate.Before(*b.DueDate)
			case a.DueDate != nil && b.DueDate == nil:
				return true
			case a.DueDate == nil && b.DueDate != nil:
				return false
			}
			return a.ID < b.ID
		})

		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", categoryLabel(group.name)))
		for _, task := range group.tasks {
			builder.WriteString(formatTask(task, now))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
		builder.WriteByte('\n')
	}

	return strings.TrimSpace(builder.String()), buttons
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	switch {
	case task.Overdue(now):
		icon = iconOverdue
	case task.DueSoon(now, service.DueSoonWindow):
		icon = iconDue
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s · %s\n", icon, task.ID, escape(task.Title), task.Priority.Label()))
	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if task.Overdue(now) {
			b.WriteString(fmt.Sprintf("   ⏰ Due %s, <b>overdue</b>\n", d.Format(dueLayout)))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ Due %s\n", d.Format(dueLayout)))
		}
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(shortTitle(task.Description, 80))))
	}
	return b.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func categoryLabel(name string) string {
	base := model.NormalizeCategory(name)
	var icon string
	switch strings.ToLower(base) {
	case "work":
		icon = "💼"
	case "personal":
		icon = "🧩"
	case "shopping":
		icon = "🛒"
	case "health":
		icon = "🩺"
	case "study":
		icon = "🎓"
	case model.DefaultCategory:
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(capitalize(base)))
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func bulletList(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("• " + escape(line) + "\n")
	}
	return b.String()
}

func escape(s string) string {
	return html.EscapeString(s)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "back" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCategories),
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTimeKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTimeKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTimeKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		row = append(row, tgbotapi.NewKeyboardButton(string(p)))
	}
	return oneTimeKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
}

// categoryKeyboard offers the owner's own categories first, then the
// stock suggestions, two per row.
func categoryKeyboard(existing []string) tgbotapi.ReplyKeyboardMarkup {
	seen := make(map[string]bool)
	var names []string
	for _, name := range append(append([]string{}, existing...), suggestedCategories...) {
		key := model.CategorySlug(name)
		if seen[key] || len(names) == maxCategoryButtons {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}

	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(names); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(names[i]))
		if i+1 < len(names) {
			row = append(row, tgbotapi.NewKeyboardButton(names[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	return oneTimeKeyboard(rows...)
}

func oneTimeKeyboard(rows ...[]tgbotapi.KeyboardButton) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
