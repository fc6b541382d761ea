package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidationError lists the first failing message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// rule pairs a field with a predicate and the message reported when it fails.
type rule struct {
	field   string
	ok      func() bool
	message string
}

// validate runs rules in order and keeps the first failure of each field.
func validate(rules []rule) error {
	failed := map[string]string{}
	for _, r := range rules {
		if _, seen := failed[r.field]; seen {
			continue
		}
		if !r.ok() {
			failed[r.field] = r.message
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Fields: failed}
}

var otpPattern = regexp.MustCompile(`^\d{6}$`)

// Layouts accepted for the date of birth, tried in order.
var dateLayouts = []string{
	"02/01/2006",
	"2006/01/02",
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseDateOfBirth accepts dd/MM/yyyy, yyyy/MM/dd and ISO 8601 and returns
// the calendar date at UTC midnight.
func ParseDateOfBirth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func notBlank(s string) func() bool {
	return func() bool { return strings.TrimSpace(s) != "" }
}

func lengthBetween(s string, lo, hi int) func() bool {
	return func() bool {
		n := utf8.RuneCountInString(s)
		return n >= lo && n <= hi
	}
}

func validEmail(s string) func() bool {
	return func() bool {
		if s == "" || len(s) > 254 {
			return false
		}
		addr, err := mail.ParseAddress(s)
		return err == nil && addr.Address == s
	}
}

func inRange(v *float64, lo, hi float64) func() bool {
	return func() bool { return v == nil || (*v >= lo && *v <= hi) }
}

func validDate(s string) func() bool {
	return func() bool {
		_, err := ParseDateOfBirth(s)
		return err == nil
	}
}

func emailRules(email string) []rule {
	return []rule{
		{"email", notBlank(email), "The email is required."},
		{"email", validEmail(email), "The email must be a valid email address."},
	}
}

func coordinateRules(lat, lng *float64) []rule {
	return []rule{
		{"latitude", inRange(lat, -90, 90), "The latitude must be a valid coordinate."},
		{"longitude", inRange(lng, -180, 180), "The longitude must be a valid coordinate."},
	}
}

// Validate checks a signup body.
func (r SignupRequest) Validate() error {
	rules := []rule{
		{"name", lengthBetween(strings.TrimSpace(r.Name), 2, 50), "The name must be between 2 and 50 characters long."},
		{"lastName", lengthBetween(strings.TrimSpace(r.LastName), 2, 50), "The last name must be between 2 and 50 characters long."},
		{"telephone", lengthBetween(r.Telephone, 10, 15), "The telephone number must be between 10 and 15 digits."},
		{"dateOfBirth", notBlank(r.DateOfBirth), "The date of birth is required."},
		{"dateOfBirth", validDate(r.DateOfBirth), "The dateOfBirth must be a valid date in the format dd/MM/yyyy, yyyy/MM/dd or yyyy-MM-dd."},
	}
	rules = append(rules, emailRules(r.Email)...)
	rules = append(rules,
		rule{"password", lengthBetween(r.Password, 8, 20), "The password must be between 8 and 20 characters long."},
	)
	if r.ConfirmPassword != "" {
		rules = append(rules,
			rule{"confirmPassword", lengthBetween(r.ConfirmPassword, 8, 20), "The confirm password must be between 8 and 20 characters long."},
			rule{"confirmPassword", func() bool { return r.ConfirmPassword == r.Password }, "Password and confirm password do not match."},
		)
	}
	rules = append(rules, coordinateRules(r.Latitude, r.Longitude)...)
	return validate(rules)
}

// Validate checks a login body. Password length policy is not enforced here
// so that a short guess fails as bad credentials.
func (r LoginRequest) Validate() error {
	rules := emailRules(r.Email)
	rules = append(rules, rule{"password", notBlank(r.Password), "The password is required."})
	rules = append(rules, coordinateRules(r.Latitude, r.Longitude)...)
	return validate(rules)
}

// Validate checks a body that carries only an email.
func (r EmailRequest) Validate() error {
	return validate(emailRules(r.Email))
}

// Validate checks a reset body for the chosen method.
func (r ResetPasswordRequest) Validate(method string) error {
	rules := []rule{
		{"newPassword", lengthBetween(r.NewPassword, 8, 20), "The new password must be between 8 and 20 characters long."},
	}

	switch method {
	case ResetMethodOTP:
		rules = append(rules, emailRules(r.Email)...)
		rules = append(rules, rule{"otp", func() bool { return otpPattern.MatchString(r.OTP) }, "The OTP code must be a 6-digit number."})
	case ResetMethodToken:
		rules = append(rules, rule{"token", notBlank(r.Token), "The token is required when OTP is not used."})
	}
	return validate(rules)
}
