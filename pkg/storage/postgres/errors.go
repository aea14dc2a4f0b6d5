package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/platinummonkey/bulwark/pkg/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

var conflictMessages = map[string]string{
	"users_email_key":          "User already exists",
	"organizations_code_key":   "Organization code already exists",
	"roles_name_scope_org_key": "Role already exists for this scope and organization",
}

// mapError translates driver errors into apperr kinds. Unknown errors are
// returned unchanged.
func mapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case uniqueViolation:
		msg, ok := conflictMessages[pqErr.Constraint]
		if !ok {
			msg = resource + " already exists"
		}
		return apperr.Wrap(apperr.KindConflict, err, msg)
	case foreignKeyViolation:
		return apperr.Wrap(apperr.KindValidation, err, "Referenced organization does not exist")
	case checkViolation:
		return apperr.Wrap(apperr.KindValidation, err, resource+" violates a data constraint")
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
