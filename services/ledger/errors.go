package ledger

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("accounting transaction not found")
	// ErrConstraintViolation is returned when an insert hit the unique key and the follow-up update found nothing.
	ErrConstraintViolation = errors.New("accounting transaction constraint violation")
	ErrInvalidEntry        = errors.New("invalid accounting entry")
)

// isUniqueViolation recognises duplicate-key failures whether or not the dialect translated them.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
