package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-progress-api/internal/apperror"
)

// translateError maps driver and gorm errors onto the shared error kinds.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(err)
	case isUniqueViolation(err):
		return apperror.Conflict(err)
	case isForeignKeyViolation(err):
		return apperror.Validation(fmt.Errorf("referenced student, teacher, subject or class does not exist: %w", err))
	case isTransient(err):
		return apperror.Transient(err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "sqlstate 23505")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "foreign key constraint") ||
		strings.Contains(message, "sqlstate 23503")
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "connection refused") ||
		strings.Contains(message, "database is locked") ||
		strings.Contains(message, "too many connections")
}
