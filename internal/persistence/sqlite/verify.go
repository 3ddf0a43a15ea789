// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrCorrupt is matched by every IntegrityError.
var ErrCorrupt = errors.New("sqlite: integrity check failed")

// IntegrityError carries the rows PRAGMA quick_check reported.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCorrupt, strings.Join(e.Problems, "; "))
}

func (e *IntegrityError) Unwrap() error { return ErrCorrupt }

// CheckIntegrity runs quick_check, or integrity_check when full is set, and
// returns an *IntegrityError unless SQLite answers a single "ok".
func CheckIntegrity(ctx context.Context, db *sql.DB, full bool) error {
	pragma := "PRAGMA quick_check"
	if full {
		pragma = "PRAGMA integrity_check"
	}

	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return fmt.Errorf("sqlite: %s: %w", pragma, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("sqlite: scan %s row: %w", pragma, err)
		}
		problems = append(problems, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	switch {
	case len(problems) == 1 && strings.EqualFold(problems[0], "ok"):
		return nil
	case len(problems) == 0:
		return &IntegrityError{Problems: []string{"no rows returned"}}
	default:
		return &IntegrityError{Problems: problems}
	}
}
