package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLang     = "ru"
	DefaultCurrency = "RUB"
)

type (
	// Category is a free-text transaction label. The zero value is the
	// absent category, which is distinct from every string including "".
	Category struct {
		Name  string
		Valid bool
	}

	User struct {
		ID        int64
		FirstName string
		Username  string
		Lang      string
		Currency  string
		CreatedAt time.Time
	}

	// NewUser carries the display fields supplied on first contact. An
	// empty Lang means DefaultLang.
	NewUser struct {
		ID        int64
		FirstName string
		Username  string
		Lang      string
	}

	Transaction struct {
		ID       int64
		UserID   int64
		Amount   decimal.Decimal
		Category Category
		IsIncome bool
		Currency string
		Date     time.Time
	}

	// NewTransaction is the input of the single commit operation. The store
	// assigns ID and Date.
	NewTransaction struct {
		UserID   int64
		Amount   decimal.Decimal
		Category Category
		IsIncome bool
		Currency string
	}

	Budget struct {
		UserID      int64
		Category    string
		LimitAmount decimal.Decimal
	}
)

var (
	// ErrInvalidAmount is returned when user input is not a decimal number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnknownUser is returned when a transaction references a user that
	// was never registered. Nothing is written.
	ErrUnknownUser = errors.New("unknown user")
	// ErrStorage marks failures of the durable medium. Storage
	// implementations wrap the driver error together with this sentinel.
	ErrStorage = errors.New("storage unavailable")
	// ErrNotFound is returned by point lookups.
	ErrNotFound = errors.New("not found")
)

// NewCategory returns a present category with the given label.
func NewCategory(name string) Category {
	return Category{Name: name, Valid: true}
}

// String returns the label, or "" for the absent category.
func (c Category) String() string {
	if !c.Valid {
		return ""
	}
	return c.Name
}

// CurrencyOrDefault returns the transaction currency, falling back to RUB.
func (t NewTransaction) CurrencyOrDefault() string {
	if t.Currency == "" {
		return DefaultCurrency
	}
	return t.Currency
}
