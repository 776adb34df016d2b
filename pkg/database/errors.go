package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/wareflow/wareflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514":
		return mapCheckConstraint(pqErr)

	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503":
		return errors.BadRequest("referenced record does not exist")

	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})

	// serialization_failure, deadlock_detected
	case "40001", "40P01":
		return errors.Conflict("concurrent update, please retry")

	default:
		return nil
	}
}

// Translate returns the mapped AppError for pq errors and err unchanged otherwise.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		appErr.Err = err
		return appErr
	}
	return err
}

// IsUniqueViolation reports whether err is a unique violation, optionally on
// the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "load_within_capacity"):
		return errors.BusinessRule("shelf capacity exceeded")
	case strings.Contains(constraint, "picked_within_target"):
		return errors.BusinessRule("picked quantity cannot exceed the requested quantity")
	case strings.Contains(constraint, "qc_status_valid"):
		return errors.Validation(map[string]string{
			"qc_status": "must be one of: Pending, Approved, Rejected",
		})
	case strings.Contains(constraint, "audit_status_valid"):
		return errors.Validation(map[string]string{
			"audit_status": "must be one of: Found, Not Found, Scrapped, Manually Approved",
		})
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.BusinessRule("quantity cannot be negative")
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "inventory_units_barcode"):
		return "a unit with this barcode already exists"
	case strings.Contains(constraint, "picklists_name"):
		return "a picklist with this name already exists"
	case strings.Contains(constraint, "picklist_items_picklist_material"):
		return "the picklist already has a line for this material"
	case strings.Contains(constraint, "materials_name"):
		return "a material with this name already exists"
	case strings.Contains(constraint, "audits_number"):
		return "an audit with this number already exists"
	default:
		return "a record with these values already exists"
	}
}
