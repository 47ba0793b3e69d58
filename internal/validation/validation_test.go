package validation

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func validTaskForm() map[string]string {
	return map[string]string{
		FieldTitle:       "Buy milk",
		FieldDescription: "2%",
		FieldPriority:    "low",
		FieldCategory:    "errands",
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{name: "simple", email: "alice@x.com", want: true},
		{name: "plus and dots", email: "first.last+tag@mail.example.org", want: true},
		{name: "percent and dash", email: "a%b-c@ex-ample.io", want: true},
		{name: "long tld", email: "user@example.technology", want: true},
		{name: "missing at", email: "userexample.com", want: false},
		{name: "missing tld", email: "user@example", want: false},
		{name: "one letter tld", email: "user@example.c", want: false},
		{name: "digit tld", email: "user@example.c0m", want: false},
		{name: "missing local part", email: "@example.com", want: false},
		{name: "double at", email: "user@@example.com", want: false},
		{name: "space", email: "us er@example.com", want: false},
		{name: "empty", email: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.email))
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"alice", true},
		{"bob_99", true},
		{"abc", true},
		{"ab", false},
		{"", false},
		{"al ice", false},
		{"alice!", false},
		{"élodie", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateUsername(tt.username))
		})
	}
}

func TestValidatePassword_Reasons(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
		reason   string
	}{
		{name: "too short wins over other rules", password: "abc", ok: false, reason: "at least 6 characters"},
		{name: "no letter", password: "123456", ok: false, reason: "at least one letter"},
		{name: "no digit", password: "abcdef", ok: false, reason: "at least one number"},
		{name: "strong", password: "abc123", ok: true, reason: "strong enough"},
		{name: "multibyte counts characters", password: "a1éé", ok: false, reason: "at least 6 characters"},
		{name: "multibyte strong", password: "a1éééé", ok: true, reason: "strong enough"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidatePassword(tt.password)
			assert.Equal(t, tt.ok, ok)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestValidatePassword_MatchesDefinition(t *testing.T) {
	alphabet := []string{"a", "Z", "1", "9", "_", " ", "é"}
	var candidates []string
	var build func(prefix string, depth int)
	build = func(prefix string, depth int) {
		candidates = append(candidates, prefix)
		if depth == 0 {
			return
		}
		for _, c := range alphabet {
			build(prefix+c, depth-1)
		}
	}
	build("", 3)
	for _, base := range []string{"abcdef", "123456", "______", "abc123", "a1"} {
		for _, c := range candidates {
			candidates = append(candidates, base+c, c+base)
		}
	}

	for _, p := range candidates {
		want := utf8.RuneCountInString(p) >= MinPasswordLength &&
			strings.ContainsAny(p, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(p, "0123456789")
		got, _ := ValidatePassword(p)
		if got != want {
			t.Fatalf("ValidatePassword(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestValidateRegistration(t *testing.T) {
	t.Run("valid form", func(t *testing.T) {
		errs := ValidateRegistration(Registration{
			Username: "alice", Email: "alice@x.com", FirstName: "Alice", LastName: "Liddell", Password: "abc123",
		})
		assert.Empty(t, errs)
	})

	t.Run("everything wrong is reported together", func(t *testing.T) {
		errs := ValidateRegistration(Registration{Username: "a!", Email: "nope", Password: "short"})
		assert.Equal(t, []string{
			"Username must be at least 3 characters long.",
			"Please enter a valid email address.",
			"First name is required.",
			"Last name is required.",
			"Password must contain at least 6 characters.",
		}, errs)
	})

	t.Run("empty form", func(t *testing.T) {
		errs := ValidateRegistration(Registration{})
		assert.Equal(t, []string{
			"Username is required.",
			"Email is required.",
			"First name is required.",
			"Last name is required.",
			"Password is required.",
		}, errs)
	})

	t.Run("bad characters in username", func(t *testing.T) {
		errs := ValidateRegistration(Registration{
			Username: "alice smith", Email: "alice@x.com", FirstName: "A", LastName: "S", Password: "abc123",
		})
		assert.Equal(t, []string{"Username can only contain letters, numbers and underscores."}, errs)
	})
}

func TestValidateTaskFields_Valid(t *testing.T) {
	ok, errs := ValidateTaskFields(validTaskForm(), testNow)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateTaskFields_AccumulatesTitleAndPriority(t *testing.T) {
	form := validTaskForm()
	form[FieldTitle] = ""
	form[FieldPriority] = "urgent"

	ok, errs := ValidateTaskFields(form, testNow)

	assert.False(t, ok)
	assert.Equal(t, []string{"Title is required.", "Invalid priority level."}, errs)
}

func TestValidateTaskFields_AllViolations(t *testing.T) {
	form := map[string]string{
		FieldTitle:       strings.Repeat("t", MaxTitleLength+1),
		FieldDescription: strings.Repeat("d", MaxDescriptionLength+1),
		FieldDueDate:     "2020-01-01 10:00",
		FieldPriority:    "",
	}

	ok, errs := ValidateTaskFields(form, testNow)

	assert.False(t, ok)
	assert.Equal(t, []string{
		"Title must be under 200 characters long.",
		"Description must be under 1000 characters long.",
		"Due date can't be in the past.",
		"Invalid priority level.",
	}, errs)
}

func TestValidateTaskFields_Lengths(t *testing.T) {
	form := validTaskForm()
	form[FieldTitle] = strings.Repeat("é", MaxTitleLength)
	form[FieldDescription] = strings.Repeat("ж", MaxDescriptionLength)

	ok, errs := ValidateTaskFields(form, testNow)
	assert.True(t, ok, "limits count characters, not bytes: %v", errs)
}

func TestValidateTaskFields_DueDate(t *testing.T) {
	tests := []struct {
		name string
		due  string
		want []string
	}{
		{name: "no due date", due: "", want: []string{}},
		{name: "future datetime-local", due: "2026-03-11T09:30", want: []string{}},
		{name: "future with space", due: "2026-03-11 09:30", want: []string{}},
		{name: "future rfc3339", due: "2026-03-11T09:30:00Z", want: []string{}},
		{name: "future date only", due: "2026-04-01", want: []string{}},
		{name: "past", due: "2026-03-10T11:59", want: []string{"Due date can't be in the past."}},
		{name: "garbage", due: "next tuesday", want: []string{"Invalid date format. Use YYYY-MM-DD HH:MM."}},
		{name: "impossible date", due: "2026-02-30", want: []string{"Invalid date format. Use YYYY-MM-DD HH:MM."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validTaskForm()
			form[FieldDueDate] = tt.due
			_, errs := ValidateTaskFields(form, testNow)
			assert.Equal(t, tt.want, errs)
		})
	}
}

func TestValidateTaskFields_Priorities(t *testing.T) {
	for _, p := range []string{"low", "medium", "high"} {
		form := validTaskForm()
		form[FieldPriority] = p
		ok, _ := ValidateTaskFields(form, testNow)
		assert.True(t, ok, p)
	}
	for _, p := range []string{"", "LOW", "Medium", "critical", " high"} {
		form := validTaskForm()
		form[FieldPriority] = p
		ok, errs := ValidateTaskFields(form, testNow)
		assert.False(t, ok, p)
		assert.Equal(t, []string{"Invalid priority level."}, errs)
	}
}

func TestParseDueDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)

	due, err := ParseDueDate("2026-05-01T08:15", loc)
	require.NoError(t, err)
	require.NotNil(t, due)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 15, 0, 0, loc), *due)

	due, err = ParseDueDate("   ", loc)
	require.NoError(t, err)
	assert.Nil(t, due)

	_, err = ParseDueDate("01/05/2026", loc)
	assert.ErrorIs(t, err, ErrDueDateFormat)
}
