package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tutormula/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var hhmmRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if len(name) < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// RequireText rejects blank input for field
func RequireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ValidationError{Field: field, Message: field + " is required"}
	}
	return value, nil
}

// ParseInt parses a whole number within [min, max]
func ParseInt(field, value string, min, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, ValidationError{Field: field, Message: "must be a number"}
	}
	if n < min || n > max {
		return 0, ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return n, nil
}

// ParseAge accepts 1..120
func ParseAge(value string) (int, error) {
	return ParseInt("age", value, 1, 120)
}

// ParseExperience accepts 0..80 years
func ParseExperience(value string) (int, error) {
	return ParseInt("experience", value, 0, 80)
}

// ParseDuration accepts a positive number of minutes up to a day
func ParseDuration(value string) (int, error) {
	return ParseInt("duration", value, 1, 24*60)
}

// ParseScore accepts 1..10
func ParseScore(value string) (int, error) {
	return ParseInt("score", value, models.MinReportScore, models.MaxReportScore)
}

// ValidateScore checks an already-parsed score
func ValidateScore(score int) error {
	if score < models.MinReportScore || score > models.MaxReportScore {
		return ValidationError{Field: "score", Message: fmt.Sprintf("must be between %d and %d", models.MinReportScore, models.MaxReportScore)}
	}
	return nil
}

// ParseScheduledAt parses YYYY-MM-DD HH:MM as UTC
func ParseScheduledAt(value string) (time.Time, error) {
	t, err := time.ParseInLocation(models.SessionTimeLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, ValidationError{Field: "scheduled_at", Message: "use the format YYYY-MM-DD HH:MM"}
	}
	return t, nil
}

// ParseHHMM parses a 24-hour HH:MM time of day into hour and minute
func ParseHHMM(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if !hhmmRegex.MatchString(value) {
		return 0, 0, ValidationError{Field: "time", Message: "use the 24-hour format HH:MM"}
	}
	h, _ := strconv.Atoi(value[:2])
	m, _ := strconv.Atoi(value[3:])
	return h, m, nil
}
