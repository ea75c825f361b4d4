package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindInsufficientBonus
	KindInvalidTransition
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInsufficientBonus:
		return "insufficient_bonus"
	case KindInvalidTransition:
		return "invalid_state_transition"
	case KindConflict:
		return "concurrency_conflict"
	default:
		return "internal_error"
	}
}

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInsufficientBonus = &Error{Kind: KindInsufficientBonus}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
)

// Shortage describes one ingredient that cannot cover a requested quantity.
type Shortage struct {
	MenuItemID   int64  `json:"menu_item_id"`
	IngredientID int64  `json:"ingredient_id"`
	Ingredient   string `json:"ingredient"`
	Required     int64  `json:"required"`
	Available    int64  `json:"available"`
}

type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Shortages []Shortage
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return newf(KindValidation, op, format, args...)
}

func NotFound(op, format string, args ...any) error {
	return newf(KindNotFound, op, format, args...)
}

func InvalidTransition(op, format string, args ...any) error {
	return newf(KindInvalidTransition, op, format, args...)
}

func InsufficientBonus(op, format string, args ...any) error {
	return newf(KindInsufficientBonus, op, format, args...)
}

func InsufficientStock(op string, shortages []Shortage) error {
	names := make([]string, 0, len(shortages))
	for _, s := range shortages {
		names = append(names, fmt.Sprintf("%s (need %d, have %d)", s.Ingredient, s.Required, s.Available))
	}
	msg := "insufficient stock"
	if len(names) > 0 {
		msg += ": " + strings.Join(names, ", ")
	}
	return &Error{
		Kind:      KindInsufficientStock,
		Op:        op,
		Message:   msg,
		Shortages: shortages,
	}
}

func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Message: "concurrent update, retry the operation", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ShortagesOf returns the shortages carried by an InsufficientStock error.
func ShortagesOf(err error) []Shortage {
	var e *Error
	if errors.As(err, &e) {
		return e.Shortages
	}
	return nil
}
