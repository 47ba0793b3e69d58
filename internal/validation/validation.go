// Package validation holds the form rules for accounts and tasks. Every
// function is pure: callers pass the clock in where time matters.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"taskflow/internal/model"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MinUsernameLength    = 3
	MinPasswordLength    = 6
)

// Task form field names.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldCategory    = "category"
	FieldDueDate     = "due_date"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,24}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
)

// dueDateLayouts mirrors what browsers send for date and datetime-local
// inputs plus the space-separated form people type by hand.
var dueDateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ErrDueDateFormat is returned by ParseDueDate for unparseable input.
var ErrDueDateFormat = errors.New("invalid due date format")

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidateUsername(username string) bool {
	return len(username) >= MinUsernameLength && usernamePattern.MatchString(username)
}

// ValidatePassword checks password strength and returns the first failing
// reason. Length is counted in characters.
func ValidatePassword(password string) (bool, string) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return false, fmt.Sprintf("Password must contain at least %d characters.", MinPasswordLength)
	}
	if !letterPattern.MatchString(password) {
		return false, "Password must contain at least one letter."
	}
	if !digitPattern.MatchString(password) {
		return false, "Password must contain at least one number."
	}
	return true, "Password is strong enough."
}

// Registration is the raw sign-up form after trimming.
type Registration struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// ValidateRegistration collects every problem with the sign-up form.
func ValidateRegistration(r Registration) []string {
	var errs []string

	switch {
	case r.Username == "":
		errs = append(errs, "Username is required.")
	case len(r.Username) < MinUsernameLength:
		errs = append(errs, fmt.Sprintf("Username must be at least %d characters long.", MinUsernameLength))
	case !usernamePattern.MatchString(r.Username):
		errs = append(errs, "Username can only contain letters, numbers and underscores.")
	}

	switch {
	case r.Email == "":
		errs = append(errs, "Email is required.")
	case !ValidateEmail(r.Email):
		errs = append(errs, "Please enter a valid email address.")
	}

	if r.FirstName == "" {
		errs = append(errs, "First name is required.")
	}
	if r.LastName == "" {
		errs = append(errs, "Last name is required.")
	}

	if r.Password == "" {
		errs = append(errs, "Password is required.")
	} else if ok, reason := ValidatePassword(r.Password); !ok {
		errs = append(errs, reason)
	}

	return errs
}

// ValidateTaskFields checks a task form and reports all violations at once,
// in field order: title, description, due date, priority.
func ValidateTaskFields(fields map[string]string, now time.Time) (bool, []string) {
	errs := []string{}

	title := fields[FieldTitle]
	switch {
	case strings.TrimSpace(title) == "":
		errs = append(errs, "Title is required.")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs = append(errs, fmt.Sprintf("Title must be under %d characters long.", MaxTitleLength))
	}

	description := fields[FieldDescription]
	switch {
	case strings.TrimSpace(description) == "":
		errs = append(errs, "Description is required.")
	case utf8.RuneCountInString(description) > MaxDescriptionLength:
		errs = append(errs, fmt.Sprintf("Description must be under %d characters long.", MaxDescriptionLength))
	}

	if raw := strings.TrimSpace(fields[FieldDueDate]); raw != "" {
		due, err := ParseDueDate(raw, now.Location())
		switch {
		case err != nil:
			errs = append(errs, "Invalid date format. Use YYYY-MM-DD HH:MM.")
		case due.Before(now):
			errs = append(errs, "Due date can't be in the past.")
		}
	}

	if _, ok := model.ParsePriority(fields[FieldPriority]); !ok {
		errs = append(errs, "Invalid priority level.")
	}

	return len(errs) == 0, errs
}

// ParseDueDate parses a due date in loc. Empty input yields nil.
func ParseDueDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t, nil
		}
	}
	return nil, ErrDueDateFormat
}
