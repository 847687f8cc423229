package segmentation

import (
	"fmt"
	"strings"
)

// SubscriberColumns is the column list selected for segment pages, in scan order.
const SubscriberColumns = `s.id, s.organization_id, s.email, COALESCE(s.custom_fields, '{}'::jsonb),
	COALESCE(s.gpg_public_key, ''), s.encrypt_emails, s.is_active, s.created_at`

// Query is a compiled segment: a page query and a count query sharing the
// same predicates.
type Query struct {
	SQL       string
	Args      []interface{}
	CountSQL  string
	CountArgs []interface{}
}

// storedIntPattern accepts the custom-field text that $gt and $lt compare
// numerically. Eighteen digits always fit a BIGINT.
const storedIntPattern = `^\s*-?[0-9]{1,18}\s*$`

// QueryBuilder builds SQL queries from parsed filters.
type QueryBuilder struct {
	baseTable  string
	args       []interface{}
	argCounter int
}

// NewQueryBuilder creates a new QueryBuilder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		baseTable:  "subscribers",
		args:       make([]interface{}, 0),
		argCounter: 1,
	}
}

// nextArg returns the next argument placeholder
func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

func (qb *QueryBuilder) reset() {
	qb.args = make([]interface{}, 0)
	qb.argCounter = 1
}

// Compile builds the page and count queries for filters scoped to orgID.
func (qb *QueryBuilder) Compile(f Filters, orgID string) Query {
	qb.reset()
	where := qb.buildWhere(f, orgID)
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s s WHERE %s", qb.baseTable, where)
	countArgs := append([]interface{}(nil), qb.args...)

	pageSQL := fmt.Sprintf("SELECT %s FROM %s s WHERE %s ORDER BY s.created_at ASC, s.id ASC",
		SubscriberColumns, qb.baseTable, where)
	if f.Limit > 0 {
		pageSQL += " LIMIT " + qb.nextArg(f.Limit)
	}
	if f.Offset > 0 {
		pageSQL += " OFFSET " + qb.nextArg(f.Offset)
	}

	return Query{
		SQL:       pageSQL,
		Args:      append([]interface{}(nil), qb.args...),
		CountSQL:  countSQL,
		CountArgs: countArgs,
	}
}

// Compile is a convenience wrapper over a fresh QueryBuilder.
func Compile(f Filters, orgID string) Query {
	return NewQueryBuilder().Compile(f, orgID)
}

func (qb *QueryBuilder) buildWhere(f Filters, orgID string) string {
	conditions := []string{fmt.Sprintf("s.organization_id = %s", qb.nextArg(orgID))}

	for _, ff := range f.CustomFields {
		conditions = append(conditions, qb.buildCustomFieldCondition(ff))
	}

	if f.EmailDomain != "" {
		conditions = append(conditions, fmt.Sprintf("s.email LIKE %s", qb.nextArg("%@"+escapeLike(f.EmailDomain))))
	}
	if f.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("s.created_at >= %s", qb.nextArg(*f.CreatedAfter)))
	}
	if f.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("s.created_at <= %s", qb.nextArg(*f.CreatedBefore)))
	}
	if f.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_active = %s", qb.nextArg(*f.IsActive)))
	}

	return strings.Join(conditions, " AND ")
}

// buildCustomFieldCondition binds the field name as a parameter; the JSON
// key is never spliced into the SQL text.
func (qb *QueryBuilder) buildCustomFieldCondition(ff FieldFilter) string {
	field := fmt.Sprintf("(s.custom_fields ->> %s)", qb.nextArg(ff.Field))

	switch ff.Op.Kind {
	case OpGt, OpLt:
		cmp := ">"
		if ff.Op.Kind == OpLt {
			cmp = "<"
		}
		// CASE keeps non-integer and oversized values from reaching the cast.
		return fmt.Sprintf("(CASE WHEN %s ~ '%s' THEN CAST(TRIM(%s) AS BIGINT) END) %s %s",
			field, storedIntPattern, field, cmp, qb.nextArg(ff.Op.Int))
	case OpContains:
		return fmt.Sprintf("%s ILIKE %s", field, qb.nextArg("%"+escapeLike(ff.Op.Text)+"%"))
	default:
		return fmt.Sprintf("%s = %s", field, qb.nextArg(ff.Op.Text))
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
