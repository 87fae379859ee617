package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"festivo/api/internal/doc"
	"festivo/api/internal/util"
)

// ErrVersionConflict means the optimistic version check failed during commit:
// another writer got in between load and commit. Under the single-writer
// lease this should not happen; it is the last line of defense against a
// lost update.
var ErrVersionConflict = errors.New("document version conflict")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateDocument(ctx context.Context, item Document, content doc.Content) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dataJSON, overridesJSON, err := encodeDocumentJSON(content)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, status, theme_preset_id, version, data, style_overrides, search_text)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
	`, item.ID, item.OwnerID, item.Status, item.ThemePresetID, item.Version, dataJSON, overridesJSON, content.PlainText()); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if err := insertBlockRows(ctx, tx, item.ID, content.Blocks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, doc.Content, error) {
	var item Document
	var dataJSON, overridesJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, status, theme_preset_id, version, data, style_overrides, created_at, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&item.ID, &item.OwnerID, &item.Status, &item.ThemePresetID, &item.Version, &dataJSON, &overridesJSON, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Document{}, doc.Content{}, err
	}

	content := doc.Content{ThemePresetID: item.ThemePresetID}
	if err := json.Unmarshal(dataJSON, &content.Data); err != nil {
		return Document{}, doc.Content{}, fmt.Errorf("decode document data: %w", err)
	}
	if err := json.Unmarshal(overridesJSON, &content.StyleOverrides); err != nil {
		return Document{}, doc.Content{}, fmt.Errorf("decode style overrides: %w", err)
	}
	content.Blocks, err = s.loadBlocks(ctx, documentID)
	if err != nil {
		return Document{}, doc.Content{}, err
	}
	return item, content, nil
}

func (s *PostgresStore) loadBlocks(ctx context.Context, documentID string) ([]doc.ContentBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section_type, variant_id
		FROM blocks
		WHERE document_id=$1
		ORDER BY sort_order ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	blocks := make([]doc.ContentBlock, 0)
	index := make(map[string]int)
	for rows.Next() {
		var block doc.ContentBlock
		if err := rows.Scan(&block.ID, &block.SectionType, &block.VariantID); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		index[block.ID] = len(blocks)
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}

	elementRows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.block_id, e.slot_name, e.value_kind, COALESCE(e.literal::text, ''), COALESCE(e.binding_path, '')
		FROM elements e
		JOIN blocks b ON b.id = e.block_id
		WHERE b.document_id=$1
		ORDER BY b.sort_order ASC, e.sort_order ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	defer elementRows.Close()

	for elementRows.Next() {
		var element doc.ContentElement
		var blockID, kind, literal, path string
		if err := elementRows.Scan(&element.ID, &blockID, &element.Slot, &kind, &literal, &path); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		element.Value = decodeValue(kind, literal, path)
		i, ok := index[blockID]
		if !ok {
			continue
		}
		blocks[i].Elements = append(blocks[i].Elements, element)
	}
	if err := elementRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elements: %w", err)
	}
	return blocks, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, status, theme_preset_id, version, created_at, updated_at
		FROM documents
		WHERE owner_id=$1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Status, &item.ThemePresetID, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, documentID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status=$2, updated_at=NOW() WHERE id=$1
	`, documentID, status)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	// Snapshots, edit logs, blocks and assets cascade at the schema level.
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// CommitPatch persists one committed patch batch in a single transaction:
// version bump, full block/element replacement, snapshot insert, and the AI
// edit log row when the source is AI. Either everything lands or nothing does.
func (s *PostgresStore) CommitPatch(ctx context.Context, documentID string, expectedVersion int64, content doc.Content, snap Snapshot, ailog *AIEditLog) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dataJSON, overridesJSON, err := encodeDocumentJSON(content)
	if err != nil {
		return Snapshot{}, err
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET version=$3, data=$4::jsonb, style_overrides=$5::jsonb, search_text=$6, theme_preset_id=$7, updated_at=NOW()
		WHERE id=$1 AND version=$2
	`, documentID, expectedVersion, expectedVersion+1, dataJSON, overridesJSON, content.PlainText(), content.ThemePresetID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("bump document version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Snapshot{}, fmt.Errorf("bump document version rows: %w", err)
	}
	if affected == 0 {
		return Snapshot{}, ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE document_id=$1`, documentID); err != nil {
		return Snapshot{}, fmt.Errorf("clear blocks: %w", err)
	}
	if err := insertBlockRows(ctx, tx, documentID, content.Blocks); err != nil {
		return Snapshot{}, err
	}

	// Per-document numbering: strictly increasing, gapless, starting at 1.
	// Computed inside the commit transaction so two batches can never race to
	// the same number.
	var number int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(number), 0) + 1 FROM snapshots WHERE document_id=$1
	`, documentID).Scan(&number); err != nil {
		return Snapshot{}, fmt.Errorf("next snapshot number: %w", err)
	}

	snap.ID = util.NewID("snap")
	snap.DocumentID = documentID
	snap.Number = number
	snap.Content = content.JSON()
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO snapshots (id, document_id, number, type, prompt, response, content)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7::jsonb)
		RETURNING created_at
	`, snap.ID, snap.DocumentID, snap.Number, snap.Type, snap.Prompt, snap.Response, string(snap.Content)).Scan(&snap.CreatedAt); err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if ailog != nil {
		ailog.ID = util.NewID("log")
		ailog.DocumentID = documentID
		ailog.Success = true
		ailog.SnapshotID = &snap.ID
		if err := insertAIEditLog(ctx, tx, *ailog); err != nil {
			return Snapshot{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit patch: %w", err)
	}
	return snap, nil
}

// RecordFailedAIEdit writes the audit row for a rejected AI batch. The commit
// transaction never opened, so this is a standalone insert: the attempt is a
// user-visible event even though the document is unchanged.
func (s *PostgresStore) RecordFailedAIEdit(ctx context.Context, entry AIEditLog) error {
	entry.ID = util.NewID("log")
	entry.Success = false
	entry.SnapshotID = nil
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ai log: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertAIEditLog(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ai log: %w", err)
	}
	return nil
}

func insertAIEditLog(ctx context.Context, tx *sql.Tx, entry AIEditLog) error {
	patches := entry.Patches
	if patches == nil {
		patches = json.RawMessage(`[]`)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ai_edit_logs (id, document_id, block_id, prompt, patches, success, error, snapshot_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5::jsonb, $6, NULLIF($7, ''), $8)
	`, entry.ID, entry.DocumentID, entry.BlockID, entry.Prompt, string(patches), entry.Success, entry.Error, entry.SnapshotID)
	if err != nil {
		return fmt.Errorf("insert ai edit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAIEditLogs(ctx context.Context, documentID string, limit int) ([]AIEditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, COALESCE(block_id, ''), prompt, patches, success, COALESCE(error, ''), snapshot_id, created_at
		FROM ai_edit_logs
		WHERE document_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ai edit logs: %w", err)
	}
	defer rows.Close()

	items := make([]AIEditLog, 0)
	for rows.Next() {
		var item AIEditLog
		var patches []byte
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.BlockID, &item.Prompt, &patches, &item.Success, &item.Error, &item.SnapshotID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ai edit log: %w", err)
		}
		item.Patches = json.RawMessage(patches)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai edit logs: %w", err)
	}
	return items, nil
}

// ListSnapshots pages through a document's history oldest first, newest last.
// Restart with afterNumber = last seen number.
func (s *PostgresStore) ListSnapshots(ctx context.Context, documentID string, afterNumber int64, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, number, type, COALESCE(prompt, ''), COALESCE(response, ''), content, COALESCE(archive_hash, ''), created_at
		FROM snapshots
		WHERE document_id=$1 AND number > $2
		ORDER BY number ASC
		LIMIT $3
	`, documentID, afterNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	items := make([]Snapshot, 0)
	for rows.Next() {
		item, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, documentID string, number int64) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, number, type, COALESCE(prompt, ''), COALESCE(response, ''), content, COALESCE(archive_hash, ''), created_at
		FROM snapshots
		WHERE document_id=$1 AND number=$2
	`, documentID, number)
	return scanSnapshot(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var item Snapshot
	var content []byte
	if err := row.Scan(&item.ID, &item.DocumentID, &item.Number, &item.Type, &item.Prompt, &item.Response, &content, &item.ArchiveHash, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	item.Content = json.RawMessage(content)
	return item, nil
}

func (s *PostgresStore) SetSnapshotArchiveHash(ctx context.Context, snapshotID, hash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE snapshots SET archive_hash=$2 WHERE id=$1`, snapshotID, hash)
	if err != nil {
		return fmt.Errorf("set snapshot archive hash: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAsset(ctx context.Context, item Asset) error {
	usedIn, err := json.Marshal(item.UsedIn)
	if err != nil {
		return fmt.Errorf("marshal asset used_in: %w", err)
	}
	if item.UsedIn == nil {
		usedIn = []byte(`[]`)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (id, document_id, object_key, content_type, used_in)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, item.ID, item.DocumentID, item.ObjectKey, item.ContentType, string(usedIn))
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var item Asset
	var usedIn []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, object_key, content_type, used_in, created_at
		FROM assets
		WHERE id=$1
	`, assetID).Scan(&item.ID, &item.DocumentID, &item.ObjectKey, &item.ContentType, &usedIn, &item.CreatedAt)
	if err != nil {
		return Asset{}, err
	}
	if err := json.Unmarshal(usedIn, &item.UsedIn); err != nil {
		return Asset{}, fmt.Errorf("decode asset used_in: %w", err)
	}
	return item, nil
}

// UpdateAssetUse adds or removes one block/element reference, keeping used_in
// a set. Runs in its own short transaction with the row locked.
func (s *PostgresStore) UpdateAssetUse(ctx context.Context, assetID, ref string, add bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin asset use: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var usedInRaw []byte
	if err := tx.QueryRowContext(ctx, `SELECT used_in FROM assets WHERE id=$1 FOR UPDATE`, assetID).Scan(&usedInRaw); err != nil {
		return fmt.Errorf("lock asset %s: %w", assetID, err)
	}
	var usedIn []string
	if err := json.Unmarshal(usedInRaw, &usedIn); err != nil {
		return fmt.Errorf("decode asset used_in: %w", err)
	}

	next := make([]string, 0, len(usedIn)+1)
	present := false
	for _, existing := range usedIn {
		if existing == ref {
			present = true
			if !add {
				continue
			}
		}
		next = append(next, existing)
	}
	if add && !present {
		next = append(next, ref)
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal asset used_in: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE assets SET used_in=$2::jsonb WHERE id=$1`, assetID, string(encoded)); err != nil {
		return fmt.Errorf("update asset used_in: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit asset use: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, documentID string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, object_key, content_type, used_in, created_at
		FROM assets
		WHERE document_id=$1
		ORDER BY created_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	items := make([]Asset, 0)
	for rows.Next() {
		var item Asset
		var usedIn []byte
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.ObjectKey, &item.ContentType, &usedIn, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		if err := json.Unmarshal(usedIn, &item.UsedIn); err != nil {
			return nil, fmt.Errorf("decode asset used_in: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return items, nil
}

func encodeDocumentJSON(content doc.Content) (string, string, error) {
	data := content.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return "", "", fmt.Errorf("marshal document data: %w", err)
	}
	overrides := content.StyleOverrides
	if overrides == nil {
		overrides = map[string]string{}
	}
	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return "", "", fmt.Errorf("marshal style overrides: %w", err)
	}
	return string(dataJSON), string(overridesJSON), nil
}

func insertBlockRows(ctx context.Context, tx *sql.Tx, documentID string, blocks []doc.ContentBlock) error {
	for order, block := range blocks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (id, document_id, section_type, variant_id, sort_order)
			VALUES ($1, $2, $3, $4, $5)
		`, block.ID, documentID, block.SectionType, block.VariantID, order); err != nil {
			return fmt.Errorf("insert block %s: %w", block.ID, err)
		}
		for elementOrder, element := range block.Elements {
			kind, literal, path := encodeValue(element.Value)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO elements (id, block_id, slot_name, value_kind, literal, binding_path, sort_order)
				VALUES ($1, $2, $3, $4, NULLIF($5, '')::jsonb, NULLIF($6, ''), $7)
			`, element.ID, block.ID, element.Slot, kind, literal, path, elementOrder); err != nil {
				return fmt.Errorf("insert element %s: %w", element.ID, err)
			}
		}
	}
	return nil
}

func encodeValue(value doc.Value) (kind, literal, path string) {
	kind = string(value.Kind)
	if value.Kind == doc.ValueLiteral {
		literal = string(value.Literal)
	}
	if value.Kind == doc.ValueBinding {
		path = value.Path
	}
	return kind, literal, path
}

func decodeValue(kind, literal, path string) doc.Value {
	if kind == string(doc.ValueBinding) {
		return doc.Binding(path)
	}
	value := doc.Value{Kind: doc.ValueLiteral}
	if literal != "" {
		value.Literal = json.RawMessage(literal)
	} else {
		value.Literal = json.RawMessage(`""`)
	}
	return value
}
