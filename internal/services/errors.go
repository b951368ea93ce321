package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/aditya93941/project-management/pkg/errors"
)

// Domain errors surfaced to API consumers. Codes are machine-checkable and
// stable; messages are for humans.
var (
	// ErrInsufficientRole rejects grant management from anyone below GROUP_HEAD.
	ErrInsufficientRole = apperrors.New("INSUFFICIENT_PERMISSIONS", "Only managers and group heads may manage permission grants", http.StatusForbidden)
	// ErrInvalidExpiry rejects grants whose computed expiry is not in the future.
	ErrInvalidExpiry = apperrors.New("INVALID_EXPIRY", "Grant expiry must be in the future", http.StatusBadRequest)
	// ErrAlreadyPending signals a duplicate open request for the same user/project pair.
	ErrAlreadyPending = apperrors.NewConflict("ALREADY_PENDING", "A pending permission request already exists for this project")
	// ErrAlreadyGranted signals that an active grant already covers the pair.
	ErrAlreadyGranted = apperrors.NewConflict("ALREADY_GRANTED", "An active permission grant already covers this project")
	// ErrAlreadyReviewed signals that the request left the PENDING state.
	ErrAlreadyReviewed = apperrors.NewConflict("ALREADY_REVIEWED", "This permission request has already been reviewed")
	// ErrRequesterRoleMismatch rejects approval when the requester is no longer a developer.
	ErrRequesterRoleMismatch = apperrors.NewConflict("ROLE_MISMATCH", "Permission requests can only be approved for developers")
	// ErrReportFinal rejects any mutation of a finalised report.
	ErrReportFinal = apperrors.NewConflict("REPORT_FINAL", "This report has been finalised and can no longer be edited")
	// ErrWrongReportDate rejects writes to any date other than today.
	ErrWrongReportDate = apperrors.NewBadRequest("Reports can only be created or edited for the current day")
)

// NewTaskNotAccessibleError names the task ids the caller may not reference.
func NewTaskNotAccessibleError(taskIDs []string) *apperrors.AppError {
	return apperrors.New(
		"TASK_NOT_ACCESSIBLE",
		fmt.Sprintf("Tasks not accessible to this user: %s", strings.Join(taskIDs, ", ")),
		http.StatusBadRequest,
	)
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
