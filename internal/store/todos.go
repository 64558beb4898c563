// todos.go -- todo queries.
//
// Fixed-shape statements are plain SQL; the list and partial-update statements
// vary with the request and are assembled with squirrel.
package store

import (
	"context"
	"fmt"

	"github.com/MGallo-Code/ticklist/internal/query"

	"github.com/Masterminds/squirrel"
)

const todoColumns = "id, user_id, title, description, completed, created_at, updated_at"

// psql builds Postgres-flavoured ($n) statements.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// sortColumns whitelists ORDER BY expressions; plan values never reach SQL directly.
// Titles compare byte-wise so ordering doesn't depend on the server collation.
var sortColumns = map[query.SortField]string{
	query.SortCreatedAt: "created_at",
	query.SortTitle:     `title COLLATE "C"`,
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*Todo, error) {
	var t Todo
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTodo inserts a todo for userID and returns the stored row.
func (s *PostgresStore) CreateTodo(ctx context.Context, userID int64, title string, description *string, completed bool) (*Todo, error) {
	t, err := scanTodo(s.pool.QueryRow(ctx,
		`INSERT INTO todos (user_id, title, description, completed) VALUES ($1, $2, $3, $4)
		 RETURNING `+todoColumns,
		userID, title, description, completed))
	if err != nil {
		return nil, fmt.Errorf("inserting todo: %w", err)
	}
	return t, nil
}

// GetTodo fetches a todo by id regardless of owner; authorization is the caller's job.
// Returns ErrNotFound if absent.
func (s *PostgresStore) GetTodo(ctx context.Context, id int64) (*Todo, error) {
	t, err := scanTodo(s.pool.QueryRow(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// listWhere is the shared WHERE clause for a plan's page and its count.
func listWhere(p query.Plan) squirrel.Eq {
	where := squirrel.Eq{"user_id": p.OwnerID}
	if p.Completed != nil {
		where["completed"] = *p.Completed
	}
	return where
}

// ListTodos returns one page of the owner's todos and the total match count.
// Ties on the sort column are broken by id ascending so pages are stable.
func (s *PostgresStore) ListTodos(ctx context.Context, p query.Plan) ([]Todo, int, error) {
	where := listWhere(p)

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("todos").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting todos: %w", err)
	}

	col, ok := sortColumns[p.Sort]
	if !ok {
		col = sortColumns[query.SortCreatedAt]
	}
	dir := "DESC"
	if p.Order == query.Asc {
		dir = "ASC"
	}

	listSQL, listArgs, err := psql.Select(todoColumns).From("todos").Where(where).
		OrderBy(col+" "+dir, "id ASC").
		Limit(uint64(p.PerPage)).
		Offset(uint64(p.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing todos: %w", err)
	}
	defer rows.Close()

	todos := make([]Todo, 0, p.PerPage)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning todo: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating todos: %w", err)
	}
	return todos, total, nil
}

// UpdateTodo applies patch to the todo owned by ownerID and returns the new row.
// user_id is never part of the SET list. An empty patch still bumps updated_at.
// Returns ErrNotFound if no row matches id + owner.
func (s *PostgresStore) UpdateTodo(ctx context.Context, id, ownerID int64, patch TodoPatch) (*Todo, error) {
	set := map[string]any{"updated_at": squirrel.Expr("NOW()")}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.ClearDescription {
		set["description"] = nil
	} else if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}

	sql, args, err := psql.Update("todos").
		SetMap(set).
		Where(squirrel.Eq{"id": id, "user_id": ownerID}).
		Suffix("RETURNING " + todoColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update query: %w", err)
	}

	t, err := scanTodo(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// DeleteTodo removes the todo owned by ownerID. Returns ErrNotFound if nothing matched.
func (s *PostgresStore) DeleteTodo(ctx context.Context, id, ownerID int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM todos WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
