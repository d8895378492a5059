package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/catalog-engine/pkg/database"
)

// PostgreSQL error codes mapped by the repositories.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier returns the connection stored in the context scope.
func querier(ctx context.Context) (database.Querier, error) {
	scope, ok := database.GetScope(ctx)
	if !ok || scope.Conn == nil {
		return nil, fmt.Errorf("no database scope in context")
	}
	return scope.Conn, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
