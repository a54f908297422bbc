package stopper

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// LoadPostgres adds every row of `SELECT term FROM <table>` to s.
//
// The table is expected to look like:
//
//	CREATE TABLE stopwords (
//	    term TEXT PRIMARY KEY
//	);
func LoadPostgres(ctx context.Context, db *sql.DB, table string, s *Stopper) (int, error) {
	query := fmt.Sprintf("SELECT term FROM %s", pq.QuoteIdentifier(table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("querying stopwords: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return n, fmt.Errorf("scanning stopword: %w", err)
		}
		if err := s.Add(term); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterating stopwords: %w", err)
	}
	return n, nil
}
