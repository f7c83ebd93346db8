package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+\-]+$`)
)

const (
	MaxUsernameLength      = 150
	MaxFamilyNameLength    = 255
	MaxCategoryNameLength  = 100
	MaxDescriptionLength   = 255
	MaxAmountIntegerDigits = 8
	AmountDecimalPlaces    = 2
	MinPasswordLength      = 8
)

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

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < MinPasswordLength {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks if a person's name is valid
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

// ValidateUsername checks login names
func ValidateUsername(username string) error {
	if username == "" {
		return ValidationError{Field: "username", Message: "username is required"}
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ValidationError{Field: "username", Message: fmt.Sprintf("username must be at most %d characters", MaxUsernameLength)}
	}
	if !usernameRegex.MatchString(username) {
		return ValidationError{Field: "username", Message: "username may contain only letters, digits and @.+-_"}
	}
	return nil
}

// ValidateFamilyName checks a family name after trimming
func ValidateFamilyName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "family name is required"}
	}
	if utf8.RuneCountInString(name) > MaxFamilyNameLength {
		return ValidationError{Field: "name", Message: fmt.Sprintf("family name must be at most %d characters", MaxFamilyNameLength)}
	}
	return nil
}

// ValidateCategoryName checks a budget category name after trimming
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "category name is required"}
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ValidationError{Field: "name", Message: fmt.Sprintf("category name must be at most %d characters", MaxCategoryNameLength)}
	}
	return nil
}

// ValidateDescription limits free-text descriptions
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ValidationError{Field: "description", Message: fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength)}
	}
	return nil
}

// ValidateInviteCode requires a UUID-formatted code and returns it in the
// canonical lowercase hyphenated form codes are stored in. Braces, a
// urn:uuid: prefix, upper case and missing hyphens are all accepted.
func ValidateInviteCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ValidationError{Field: "code", Message: "code is required"}
	}
	parsed, err := uuid.Parse(code)
	if err != nil {
		return "", ValidationError{Field: "code", Message: "code must be a valid UUID"}
	}
	return parsed.String(), nil
}

// ValidateAmount requires a positive amount that fits 10 digits with 2 decimal places
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	if amount.Exponent() < -AmountDecimalPlaces && !amount.Equal(amount.Round(AmountDecimalPlaces)) {
		return ValidationError{Field: "amount", Message: "amount must have at most 2 decimal places"}
	}
	limit := decimal.New(1, MaxAmountIntegerDigits)
	if amount.GreaterThanOrEqual(limit) {
		return ValidationError{Field: "amount", Message: "amount must have at most 8 digits before the decimal point"}
	}
	return nil
}
