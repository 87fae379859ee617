package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the documents' flattened slot text, with
// ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "d.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2
	if q.FilterOwnerID != "" {
		where += fmt.Sprintf(" AND d.owner_id = $%d", argN)
		args = append(args, q.FilterOwnerID)
		argN++
	}
	if q.FilterStatus != "" {
		where += fmt.Sprintf(" AND d.status = $%d", argN)
		args = append(args, q.FilterStatus)
		argN++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM documents d WHERE " + where
	if err := p.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT d.id, d.owner_id, d.status, d.theme_preset_id,
			left(d.search_text, 80) AS title,
			ts_headline('english', d.search_text, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(d.fts, plainto_tsquery('english', $1)) AS rank
		FROM documents d
		WHERE %s
		ORDER BY rank DESC
		LIMIT $%d OFFSET $%d`, where, argN, argN+1)
	args = append(args, limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var item Result
		var rank float64
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Status, &item.Theme, &item.Title, &item.Snippet, &rank); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every document's indexable fields, used to rebuild the
// Meilisearch index after an outage.
func (p *PgFTS) LoadAllRecords() ([]InvitationRecord, error) {
	rows, err := p.db.Query(`
		SELECT id, owner_id, status, theme_preset_id, left(search_text, 80), search_text
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load search records: %w", err)
	}
	defer rows.Close()

	records := make([]InvitationRecord, 0)
	for rows.Next() {
		var record InvitationRecord
		if err := rows.Scan(&record.ID, &record.OwnerID, &record.Status, &record.Theme, &record.Title, &record.Text); err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search records: %w", err)
	}
	return records, nil
}
