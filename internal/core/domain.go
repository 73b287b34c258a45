package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeIncome         CategoryType = "income"
	TypeExpense        CategoryType = "expense"
	TypeSavingsIncome  CategoryType = "savings_income"
	TypeSavingsExpense CategoryType = "savings_expense"
)

// DefaultCategoryColor is applied when a category is created without a color.
const DefaultCategoryColor = "#007bff"

type (
	// CategoryType is a closed enum. Amount signs are never stored; the
	// semantic direction of a transaction comes entirely from its
	// category's type.
	CategoryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID        int64        `json:"id"`
		Name      string       `json:"name"`
		Type      CategoryType `json:"type"`
		Color     string       `json:"color"`
		IsActive  bool         `json:"is_active"`
		CreatedAt time.Time    `json:"created_at,omitempty"`
	}

	Transaction struct {
		ID          int64     `json:"id"`
		CategoryID  int64     `json:"category_id"`
		Amount      Money     `json:"amount"`
		Date        Date      `json:"date"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"created_at,omitempty"`
	}

	// ClassifiedTransaction is a Transaction joined with its category's
	// metadata at read time.
	ClassifiedTransaction struct {
		Transaction
		CategoryName  string       `json:"category_name"`
		CategoryType  CategoryType `json:"category_type"`
		CategoryColor string       `json:"category_color"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty category name")
	ErrInvalidType     = errors.New("invalid category type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrMissingCategory = errors.New("missing category reference")
	ErrLongDescription = errors.New("description too long (max 200 characters)")
)

// Valid reports whether t is one of the four known category types.
func (t CategoryType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeSavingsIncome, TypeSavingsExpense:
		return true
	}
	return false
}

// IsSavings reports whether t belongs to the savings sub-ledger.
func (t CategoryType) IsSavings() bool {
	return t == TypeSavingsIncome || t == TypeSavingsExpense
}

// NewDate creates a Date at day granularity in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to day granularity in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time) / (24 * time.Hour))
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return ErrLongDescription
	}
	return nil
}
