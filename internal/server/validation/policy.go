// Package validation holds the account policy: role dependent field rules
// evaluated together so every failing field is reported at once.
package validation

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/server/models"
	"github.com/dmitrijs2005/stagepass/internal/timex"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72
	MinAge            = 18
)

// SignUpAttributes is the raw sign-up input. Role selects which fields are
// required: musician_group additionally needs NumberOfParticipants.
// BirthDate is "2006-01-02" or RFC3339. ParticipantsInput keeps a participant
// count that could not be read as an integer, so the policy can report it
// next to every other violation.
type SignUpAttributes struct {
	Email                string      `json:"email"`
	Password             string      `json:"password"`
	PasswordConfirmation string      `json:"password_confirmation"`
	Name                 string      `json:"name"`
	Role                 models.Role `json:"role"`
	BirthDate            string      `json:"birth_date"`
	NumberOfParticipants *int        `json:"number_of_participants"`
	ParticipantsInput    string      `json:"-"`
}

// Normalize trims text fields, lower-cases the email and drops the
// participant count for roles that do not use it.
func (a *SignUpAttributes) Normalize() {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Name = strings.TrimSpace(a.Name)
	a.Role = models.Role(strings.TrimSpace(string(a.Role)))
	a.BirthDate = strings.TrimSpace(a.BirthDate)
	a.ParticipantsInput = strings.TrimSpace(a.ParticipantsInput)
	if a.Role != models.RoleMusicianGroup {
		a.NumberOfParticipants = nil
		a.ParticipantsInput = ""
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDate accepts a calendar date or an RFC3339 timestamp and returns
// the date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("must be a valid date")
}

// SignUp evaluates every rule for a and returns all violations. now is the
// reference instant for the age check. a should be normalized first.
func SignUp(a SignUpAttributes, now time.Time) common.Violations {
	fields := []*validation.FieldRules{
		validation.Field(&a.Email, validation.Required, validation.Length(0, 254), is.Email),
		validation.Field(&a.Password, passwordRules()...),
		validation.Field(&a.PasswordConfirmation, validation.By(equals(a.Password))),
		validation.Field(&a.Name, validation.Required, validation.Length(0, 255)),
		validation.Field(&a.Role, validation.Required, validation.In(models.RoleMusician, models.RoleMusicianGroup)),
		validation.Field(&a.BirthDate, validation.Required, validation.By(adult(now))),
	}
	if a.Role == models.RoleMusicianGroup {
		fields = append(fields, validation.Field(&a.NumberOfParticipants, validation.By(participants(a.ParticipantsInput))))
	}
	return collect(validation.ValidateStruct(&a, fields...))
}

type passwordChange struct {
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// PasswordChange applies the password rules used by sign-up.
func PasswordChange(password, confirmation string) common.Violations {
	p := passwordChange{Password: password, PasswordConfirmation: confirmation}
	return collect(validation.ValidateStruct(&p,
		validation.Field(&p.Password, passwordRules()...),
		validation.Field(&p.PasswordConfirmation, validation.By(equals(p.Password))),
	))
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(MinPasswordLength, 0),
		validation.By(maxBytes(MaxPasswordLength)),
	}
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return errors.New("is too long (maximum is 72 bytes)")
		}
		return nil
	}
}

func equals(want string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != want {
			return errors.New("doesn't match password")
		}
		return nil
	}
}

func adult(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		d, err := ParseDate(s)
		if err != nil {
			return err
		}
		if d.After(now) {
			return errors.New("can't be in the future")
		}
		if timex.YearsBetween(d, now) < MinAge {
			return errors.New("must be at least 18 years old")
		}
		return nil
	}
}

func participants(input string) validation.RuleFunc {
	return func(value interface{}) error {
		p, _ := value.(*int)
		if p == nil {
			if input != "" {
				return errors.New("is not a number")
			}
			return errors.New("cannot be blank")
		}
		if *p < 1 {
			return errors.New("must be no less than 1")
		}
		return nil
	}
}

// collect flattens ozzo's per-field error map into sorted violations.
func collect(err error) common.Violations {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return common.Violations{{Field: "base", Message: err.Error()}}
	}
	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out common.Violations
	for _, k := range keys {
		out.Add(k, verrs[k].Error())
	}
	return out
}
