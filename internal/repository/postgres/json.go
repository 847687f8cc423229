package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// jsonb marshals v for a jsonb column. Nil maps are stored as {}.
func jsonb(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "{}", nil
	}
	return string(b), nil
}

// scanJSON decodes a jsonb column into dst. Empty input leaves dst alone.
func scanJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode jsonb: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// validID reports whether id can be bound to a UUID column. Rows are keyed
// by UUID, so anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// setBuilder accumulates "col = $n" fragments for partial updates.
type setBuilder struct {
	sets []string
	args []interface{}
}

func (b *setBuilder) add(col string, val interface{}) {
	b.args = append(b.args, val)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) empty() bool { return len(b.sets) == 0 }

// sql returns the UPDATE statement; the where columns bind after the set args.
func (b *setBuilder) sql(table string, where ...string) string {
	clauses := make([]string, len(where))
	for i, col := range where {
		clauses[i] = fmt.Sprintf("%s = $%d", col, len(b.args)+i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE %s",
		table, strings.Join(b.sets, ", "), strings.Join(clauses, " AND "))
}
