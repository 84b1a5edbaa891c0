package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/humanid"
	"github.com/phrazzld/taskhub/internal/store"
)

// whereBuilder accumulates AND-ed conditions and their positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// arg appends v and returns its placeholder.
func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *whereBuilder) add(cond string) {
	b.conds = append(b.conds, cond)
}

// in renders "col IN ($n, ...)". An empty list renders FALSE.
func (b *whereBuilder) in(col string, ids []uuid.UUID) string {
	if len(ids) == 0 {
		return "FALSE"
	}
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = b.arg(id)
	}
	return col + " IN (" + strings.Join(ph, ", ") + ")"
}

// like renders a case-insensitive substring match on any of cols.
func (b *whereBuilder) like(term string, cols ...string) string {
	ph := b.arg("%" + escapeLike(term) + "%")
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + " ILIKE " + ph
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// where renders the WHERE clause, or "" when no conditions were added.
func (b *whereBuilder) where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// taskWhere renders q as a WHERE clause over the tasks table.
func taskWhere(q store.TaskQuery) (string, []any) {
	var b whereBuilder

	if !q.Visibility.All {
		var scope []string
		if len(q.Visibility.CreatedByIn) > 0 {
			scope = append(scope, b.in("created_by", q.Visibility.CreatedByIn))
		}
		if len(q.Visibility.AssignedToIn) > 0 {
			scope = append(scope, b.in("assigned_to", q.Visibility.AssignedToIn))
		}
		switch len(scope) {
		case 0:
			b.add("FALSE")
		case 1:
			b.add(scope[0])
		default:
			b.add("(" + strings.Join(scope, " OR ") + ")")
		}
	}
	if q.Status != "" {
		b.add("status = " + b.arg(string(q.Status)))
	}
	if q.Priority != "" {
		b.add("priority = " + b.arg(string(q.Priority)))
	}
	if q.AssignedTo.Valid {
		b.add("assigned_to = " + b.arg(q.AssignedTo.UUID))
	}
	if q.CreatedBy.Valid {
		b.add("created_by = " + b.arg(q.CreatedBy.UUID))
	}
	if q.Search != "" {
		b.add(b.like(q.Search, "title", "description"))
	}

	return b.where(), b.args
}

// userWhere renders q as a WHERE clause over the users table. Deleted users
// are always excluded.
func userWhere(q store.UserQuery) (string, []any) {
	var b whereBuilder
	b.add("status <> 'deleted'")

	if !q.Visibility.All {
		var scope []string
		if len(q.Visibility.IDs) > 0 {
			scope = append(scope, b.in("id", q.Visibility.IDs))
		}
		if q.Visibility.Team.Valid {
			scope = append(scope, "team_id = "+b.arg(q.Visibility.Team.UUID))
		}
		switch len(scope) {
		case 0:
			b.add("FALSE")
		case 1:
			b.add(scope[0])
		default:
			b.add("(" + strings.Join(scope, " OR ") + ")")
		}
	}
	if q.Role != "" {
		b.add("role = " + b.arg(string(q.Role)))
	}
	if q.Search != "" {
		b.add(b.like(q.Search, "username", "email"))
	}

	return b.where(), b.args
}

// pageClause appends LIMIT and OFFSET placeholders for page to args.
func pageClause(args []any, page store.PageRequest) (string, []any) {
	page = page.Normalize()
	args = append(args, page.Limit, page.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// humanIDSource names a table carrying prefixed human ids.
type humanIDSource int

const (
	taskHumanIDs humanIDSource = iota
	userHumanIDs
)

type humanIDQuery struct {
	query  string
	prefix string
}

// humanIDQueries holds the fixed query per source. The start position is cast
// to int: an untyped parameter there resolves to the regex form of SUBSTRING.
var humanIDQueries = map[humanIDSource]humanIDQuery{
	taskHumanIDs: {
		query: `SELECT COALESCE(MAX(CAST(SUBSTRING(human_id FROM $1::int) AS INTEGER)), 0)
			FROM tasks WHERE human_id ~ $2`,
		prefix: humanid.TaskPrefix,
	},
	userHumanIDs: {
		query: `SELECT COALESCE(MAX(CAST(SUBSTRING(human_id FROM $1::int) AS INTEGER)), 0)
			FROM users WHERE human_id ~ $2`,
		prefix: humanid.UserPrefix,
	},
}

// lastHumanSeq returns the highest numeric suffix of the source's ids, or 0.
func lastHumanSeq(ctx context.Context, db store.DBTX, source humanIDSource) (int, error) {
	q, ok := humanIDQueries[source]
	if !ok {
		return 0, fmt.Errorf("unknown human id source %d", source)
	}
	pattern := "^" + regexp.QuoteMeta(q.prefix) + "[0-9]+$"

	var seq int
	if err := db.QueryRowContext(ctx, q.query, len(q.prefix)+1, pattern).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
