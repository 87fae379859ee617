package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"festivo/api/internal/archive"
	"festivo/api/internal/assets"
	"festivo/api/internal/auth"
	"festivo/api/internal/config"
	"festivo/api/internal/doc"
	"festivo/api/internal/search"
	"festivo/api/internal/session"
	"festivo/api/internal/store"
	"festivo/api/internal/theme"
	"festivo/api/internal/util"
)

type Session struct {
	Token     string
	OwnerID   string
	Name      string
	ExpiresAt time.Time
}

type CreateInvitationInput struct {
	ThemePresetID string            `json:"themePresetId"`
	Sections      []string          `json:"sections"`
	Data          map[string]any    `json:"data"`
	Overrides     map[string]string `json:"styleOverrides"`
}

type PatchInput struct {
	BaseVersion *int64          `json:"baseVersion"`
	Operations  json.RawMessage `json:"operations"`
}

type AIEditInput struct {
	BaseVersion *int64          `json:"baseVersion"`
	BlockID     string          `json:"blockId"`
	Prompt      string          `json:"prompt"`
	Response    string          `json:"response"`
	Operations  json.RawMessage `json:"operations"`
}

// defaultSections is the skeleton used when a create request names none.
var defaultSections = []string{"hero", "calendar", "story", "gallery", "venue", "rsvp"}

var allowedStatuses = map[string]struct{}{
	string(doc.StatusDraft):     {},
	string(doc.StatusPublished): {},
	string(doc.StatusArchived):  {},
}

type dataStore interface {
	CreateDocument(ctx context.Context, item store.Document, content doc.Content) error
	GetDocument(ctx context.Context, documentID string) (store.Document, doc.Content, error)
	ListDocuments(ctx context.Context, ownerID string) ([]store.Document, error)
	UpdateDocumentStatus(ctx context.Context, documentID, status string) error
	DeleteDocument(ctx context.Context, documentID string) error
	CommitPatch(ctx context.Context, documentID string, expectedVersion int64, content doc.Content, snap store.Snapshot, ailog *store.AIEditLog) (store.Snapshot, error)
	RecordFailedAIEdit(ctx context.Context, entry store.AIEditLog) error
	ListAIEditLogs(ctx context.Context, documentID string, limit int) ([]store.AIEditLog, error)
	ListSnapshots(ctx context.Context, documentID string, afterNumber int64, limit int) ([]store.Snapshot, error)
	GetSnapshot(ctx context.Context, documentID string, number int64) (store.Snapshot, error)
	SetSnapshotArchiveHash(ctx context.Context, snapshotID, hash string) error
	InsertAsset(ctx context.Context, item store.Asset) error
	GetAsset(ctx context.Context, assetID string) (store.Asset, error)
	ListAssets(ctx context.Context, documentID string) ([]store.Asset, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg     config.Config
	store   dataStore
	catalog *theme.Catalog
	engine  *doc.Engine
	archive *archive.Service
	tracker *assets.Tracker
	storage *assets.Storage     // nil when object storage is not configured
	search  *search.Service     // nil when search is not configured
	lease   *session.LeaseStore // nil when Redis is not configured
}

func NewService(cfg config.Config, dataStore dataStore, catalog *theme.Catalog, archiveSvc *archive.Service, tracker *assets.Tracker, storage *assets.Storage, searchSvc *search.Service, lease *session.LeaseStore) *Service {
	return &Service{
		cfg:     cfg,
		store:   dataStore,
		catalog: catalog,
		engine:  doc.NewEngine(catalog),
		archive: archiveSvc,
		tracker: tracker,
		storage: storage,
		search:  searchSvc,
		lease:   lease,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Login mints a dev token for a display name. The owner id is derived from
// the name so repeat logins land on the same invitations.
func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, domainError(http.StatusBadRequest, "INVALID_NAME", "Name is required", nil)
	}
	ownerID := "own_" + util.ShortHash(strings.ToLower(name))
	expires := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		OwnerID: ownerID,
		Name:    name,
		JTI:     util.NewID("jti"),
		Exp:     expires,
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, OwnerID: ownerID, Name: name, ExpiresAt: expires}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, OwnerID: claims.OwnerID, Name: claims.Name, ExpiresAt: claims.Exp}, nil
}

// CreateInvitation builds the skeleton for the picked theme and sections and
// persists it at version zero.
func (s *Service) CreateInvitation(ctx context.Context, ownerID string, input CreateInvitationInput) (map[string]any, error) {
	if _, err := s.catalog.Preset(input.ThemePresetID); err != nil {
		return nil, themeError(err)
	}
	if input.Overrides != nil {
		if _, err := s.catalog.Resolve(input.ThemePresetID, input.Overrides); err != nil {
			return nil, themeError(err)
		}
	}

	sections := input.Sections
	if len(sections) == 0 {
		sections = defaultSections
	}

	blocks := make([]doc.Block, 0, len(sections))
	for _, sectionType := range sections {
		variant, err := s.catalog.DefaultVariant(sectionType)
		if err != nil {
			return nil, themeError(err)
		}
		blocks = append(blocks, doc.NewBlock(sectionType, variant))
	}

	document := &doc.Document{
		ID:             util.NewID("inv"),
		OwnerID:        ownerID,
		Status:         doc.StatusDraft,
		Version:        0,
		ThemePresetID:  input.ThemePresetID,
		Blocks:         blocks,
		Data:           input.Data,
		StyleOverrides: input.Overrides,
	}
	if document.Data == nil {
		document.Data = map[string]any{}
	}
	if document.StyleOverrides == nil {
		document.StyleOverrides = map[string]string{}
	}

	content := doc.ContentOf(document)
	row := store.Document{
		ID:            document.ID,
		OwnerID:       ownerID,
		Status:        string(document.Status),
		ThemePresetID: document.ThemePresetID,
		Version:       0,
	}
	if err := s.store.CreateDocument(ctx, row, content); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.EnsureRepo(document.ID, content, ownerID); err != nil {
			log.Printf("archive: init %s: %v", document.ID, err)
		}
	}
	s.indexInvitation(row, content)

	return s.invitationPayload(row, content), nil
}

func (s *Service) GetInvitation(ctx context.Context, ownerID, documentID string) (map[string]any, error) {
	row, content, err := s.loadOwned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	return s.invitationPayload(row, content), nil
}

func (s *Service) ListInvitations(ctx context.Context, ownerID string) ([]map[string]any, error) {
	rows, err := s.store.ListDocuments(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]any{
			"id":            row.ID,
			"status":        row.Status,
			"themePresetId": row.ThemePresetID,
			"version":       row.Version,
			"createdAt":     row.CreatedAt,
			"updatedAt":     row.UpdatedAt,
		})
	}
	return items, nil
}

// ResolvedInvitation is the render projection: effective style tokens plus
// every slot flattened to its display value.
func (s *Service) ResolvedInvitation(ctx context.Context, ownerID, documentID string) (map[string]any, error) {
	row, content, err := s.loadOwned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	style, err := s.catalog.Resolve(content.ThemePresetID, content.StyleOverrides)
	if err != nil {
		return nil, themeError(err)
	}

	blocks := make([]map[string]any, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		slots := make(map[string]string, len(block.Elements))
		for _, element := range block.Elements {
			slots[element.Slot] = element.Value.StringValue(content.Data)
		}
		blocks = append(blocks, map[string]any{
			"id":          block.ID,
			"sectionType": block.SectionType,
			"variantId":   block.VariantID,
			"slots":       slots,
		})
	}

	return map[string]any{
		"id":      row.ID,
		"status":  row.Status,
		"version": row.Version,
		"style":   style,
		"blocks":  blocks,
	}, nil
}

// ApplyPatch validates and commits one human patch batch.
func (s *Service) ApplyPatch(ctx context.Context, ownerID, documentID string, input PatchInput) (map[string]any, error) {
	ops, err := decodeOperations(input.Operations)
	if err != nil {
		return nil, err
	}
	result, snap, err := s.commitBatch(ctx, ownerID, documentID, doc.SourceHuman, ops, input.BaseVersion, nil)
	if err != nil {
		return nil, err
	}
	return commitPayload(result, snap), nil
}

// ApplyAIEdit validates and commits an AI proposal, recording the attempt in
// the owner's edit log. A rejected batch changes nothing but still leaves an
// audit row; infrastructure and authorization failures do not, so a stranger's
// prompt can never land in someone else's audit trail.
func (s *Service) ApplyAIEdit(ctx context.Context, ownerID, documentID string, input AIEditInput) (map[string]any, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_PROMPT", "Prompt is required", nil)
	}

	// Ownership gates the audit trail before anything is recorded.
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	ops, err := decodeOperations(input.Operations)
	if err != nil {
		s.recordAIFailure(ctx, documentID, input, err)
		return nil, err
	}

	ailog := &store.AIEditLog{
		BlockID: input.BlockID,
		Prompt:  input.Prompt,
		Patches: doc.EncodeOperations(ops),
	}
	result, snap, err := s.commitBatch(ctx, ownerID, documentID, doc.SourceAI, ops, input.BaseVersion, &aiCommit{
		prompt:   input.Prompt,
		response: input.Response,
		entry:    ailog,
	})
	if err != nil {
		if isProposalRejection(err) {
			s.recordAIFailure(ctx, documentID, input, err)
		}
		return nil, err
	}
	return commitPayload(result, snap), nil
}

// isProposalRejection reports whether a commit failure was the proposal's own
// fault, a per-op validation error or a stale base version. Only those earn an
// audit row.
func isProposalRejection(err error) bool {
	var derr *DomainError
	if !errors.As(err, &derr) {
		return false
	}
	return derr.Status == http.StatusUnprocessableEntity || derr.Code == "VERSION_CONFLICT"
}

type aiCommit struct {
	prompt   string
	response string
	entry    *store.AIEditLog
}

func (s *Service) commitBatch(ctx context.Context, ownerID, documentID string, source doc.Source, ops []doc.Operation, baseVersion *int64, ai *aiCommit) (doc.CommitResult, store.Snapshot, error) {
	row, content, err := s.loadOwned(ctx, ownerID, documentID)
	if err != nil {
		return doc.CommitResult{}, store.Snapshot{}, err
	}
	if err := s.checkLease(ctx, documentID, ownerID); err != nil {
		return doc.CommitResult{}, store.Snapshot{}, err
	}
	if baseVersion != nil && *baseVersion != row.Version {
		return doc.CommitResult{}, store.Snapshot{}, domainError(http.StatusConflict, "VERSION_CONFLICT",
			fmt.Sprintf("Invitation is at version %d, batch was built against %d", row.Version, *baseVersion), nil)
	}

	document := materializeDocument(row, content)
	result, err := s.engine.Apply(document, source, ops)
	if err != nil {
		return doc.CommitResult{}, store.Snapshot{}, patchError(err)
	}

	snap := store.Snapshot{Type: store.SnapshotManual}
	if source == doc.SourceAI && ai != nil {
		snap.Type = store.SnapshotAIEdit
		snap.Prompt = ai.prompt
		snap.Response = ai.response
	}
	var entry *store.AIEditLog
	if ai != nil {
		entry = ai.entry
	}

	committed := doc.ContentOf(document)
	snap, err = s.store.CommitPatch(ctx, documentID, row.Version, committed, snap, entry)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return doc.CommitResult{}, store.Snapshot{}, domainError(http.StatusConflict, "VERSION_CONFLICT", "Invitation changed underneath this batch", nil)
		}
		return doc.CommitResult{}, store.Snapshot{}, fmt.Errorf("commit patch: %w", err)
	}

	s.afterCommit(ctx, row, committed, snap, result.BindingChanges)
	return result, snap, nil
}

// afterCommit runs the post-transaction side effects. The database commit
// already happened; failures here are logged, never surfaced as patch errors.
func (s *Service) afterCommit(ctx context.Context, row store.Document, content doc.Content, snap store.Snapshot, changes []doc.BindingChange) {
	if s.archive != nil {
		hash, err := s.archive.CommitSnapshot(row.ID, content, snap.Number, snap.Type, row.OwnerID)
		if err != nil {
			log.Printf("archive: snapshot %s #%d: %v", row.ID, snap.Number, err)
		} else if err := s.store.SetSnapshotArchiveHash(ctx, snap.ID, hash); err != nil {
			log.Printf("archive: record hash for %s: %v", snap.ID, err)
		}
	}
	if s.tracker != nil {
		s.tracker.Record(ctx, row.ID, changes)
	}
	s.indexInvitation(row, content)
}

func (s *Service) recordAIFailure(ctx context.Context, documentID string, input AIEditInput, cause error) {
	var verr *doc.ValidationError
	reason := cause.Error()
	if errors.As(cause, &verr) {
		reason = verr.Error()
	}
	patches := json.RawMessage(`[]`)
	if len(input.Operations) > 0 {
		patches = input.Operations
	}
	entry := store.AIEditLog{
		DocumentID: documentID,
		BlockID:    input.BlockID,
		Prompt:     input.Prompt,
		Patches:    patches,
		Error:      reason,
	}
	if err := s.store.RecordFailedAIEdit(ctx, entry); err != nil {
		log.Printf("ai log: record failure for %s: %v", documentID, err)
	}
}

func (s *Service) ListSnapshots(ctx context.Context, ownerID, documentID string, afterNumber int64, limit int) ([]map[string]any, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, documentID, afterNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	items := make([]map[string]any, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, snapshotSummary(snap))
	}
	return items, nil
}

func (s *Service) GetSnapshot(ctx context.Context, ownerID, documentID string, number int64) (map[string]any, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	snap, err := s.store.GetSnapshot(ctx, documentID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "SNAPSHOT_NOT_FOUND", fmt.Sprintf("No snapshot %d", number), nil)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	payload := snapshotSummary(snap)
	payload["content"] = snap.Content
	return payload, nil
}

// RestoreSnapshot replays an older snapshot's content as a new commit. The
// snapshots between then and now stay in the history.
func (s *Service) RestoreSnapshot(ctx context.Context, ownerID, documentID string, number int64) (map[string]any, error) {
	row, content, err := s.loadOwned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLease(ctx, documentID, ownerID); err != nil {
		return nil, err
	}

	snap, err := s.store.GetSnapshot(ctx, documentID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "SNAPSHOT_NOT_FOUND", fmt.Sprintf("No snapshot %d", number), nil)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	restored, err := doc.ParseContent(snap.Content)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot content: %w", err)
	}

	document := materializeDocument(row, content)
	result, err := s.engine.Restore(document, restored)
	if err != nil {
		return nil, patchError(err)
	}

	committed := doc.ContentOf(document)
	newSnap, err := s.store.CommitPatch(ctx, documentID, row.Version, committed, store.Snapshot{
		Type:   store.SnapshotRestore,
		Prompt: fmt.Sprintf("restore snapshot %d", number),
	}, nil)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, domainError(http.StatusConflict, "VERSION_CONFLICT", "Invitation changed underneath this restore", nil)
		}
		return nil, fmt.Errorf("commit restore: %w", err)
	}

	s.afterCommit(ctx, row, committed, newSnap, nil)
	return commitPayload(result, newSnap), nil
}

// Compare diffs two snapshots of the same invitation.
func (s *Service) Compare(ctx context.Context, ownerID, documentID string, fromNumber, toNumber int64) (map[string]any, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	from, err := s.snapshotContent(ctx, documentID, fromNumber)
	if err != nil {
		return nil, err
	}
	to, err := s.snapshotContent(ctx, documentID, toNumber)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"from":    fromNumber,
		"to":      toNumber,
		"changes": archive.DiffContents(from, to),
	}, nil
}

// ArchiveHistory lists the invitation's archive commits, newest first. The
// database snapshot list stays authoritative; this view exposes the commit
// hashes the compare and content-by-hash endpoints accept.
func (s *Service) ArchiveHistory(ctx context.Context, ownerID, documentID string, limit int) ([]archive.CommitInfo, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Snapshot archive is not configured", nil)
	}
	items, err := s.archive.History(documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive history: %w", err)
	}
	return items, nil
}

// ArchiveContent returns the content recorded at one archive commit.
func (s *Service) ArchiveContent(ctx context.Context, ownerID, documentID, hash string) (map[string]any, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Snapshot archive is not configured", nil)
	}
	content, err := s.archive.GetContentByHash(documentID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "COMMIT_NOT_FOUND", fmt.Sprintf("No archive commit %s", hash), nil)
	}
	return map[string]any{
		"hash":           hash,
		"themePresetId":  content.ThemePresetID,
		"blocks":         content.Blocks,
		"data":           content.Data,
		"styleOverrides": content.StyleOverrides,
	}, nil
}

func (s *Service) snapshotContent(ctx context.Context, documentID string, number int64) (doc.Content, error) {
	snap, err := s.store.GetSnapshot(ctx, documentID, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return doc.Content{}, domainError(http.StatusNotFound, "SNAPSHOT_NOT_FOUND", fmt.Sprintf("No snapshot %d", number), nil)
		}
		return doc.Content{}, fmt.Errorf("get snapshot: %w", err)
	}
	return doc.ParseContent(snap.Content)
}

func (s *Service) AIEditLogs(ctx context.Context, ownerID, documentID string, limit int) ([]map[string]any, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAIEditLogs(ctx, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ai edit logs: %w", err)
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"id":        entry.ID,
			"prompt":    entry.Prompt,
			"patches":   entry.Patches,
			"success":   entry.Success,
			"createdAt": entry.CreatedAt,
		}
		if entry.BlockID != "" {
			item["blockId"] = entry.BlockID
		}
		if entry.Error != "" {
			item["error"] = entry.Error
		}
		if entry.SnapshotID != nil {
			item["snapshotId"] = *entry.SnapshotID
		}
		items = append(items, item)
	}
	return items, nil
}

// SetStatus moves an invitation between draft, published and archived.
// Status is metadata: it does not bump the version or cut a snapshot.
func (s *Service) SetStatus(ctx context.Context, ownerID, documentID, status string) (map[string]any, error) {
	row, content, err := s.loadOwned(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if _, ok := allowedStatuses[status]; !ok {
		return nil, domainError(http.StatusBadRequest, "INVALID_STATUS", fmt.Sprintf("Unknown status %q", status), nil)
	}
	if err := s.store.UpdateDocumentStatus(ctx, documentID, status); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	row.Status = status
	s.indexInvitation(row, content)
	return map[string]any{"id": documentID, "status": status}, nil
}

func (s *Service) DeleteInvitation(ctx context.Context, ownerID, documentID string) error {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.Remove(documentID); err != nil {
			log.Printf("archive: remove %s: %v", documentID, err)
		}
	}
	if s.search != nil {
		s.search.DeleteInvitation(documentID)
	}
	return nil
}

// UploadAsset stores a media file and registers it, unused, for the document.
func (s *Service) UploadAsset(ctx context.Context, ownerID, documentID, filename, contentType string, size int64, reader io.Reader) (map[string]any, error) {
	if s.storage == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage is not configured", nil)
	}
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	assetID := util.NewID("ast")
	key := assets.ObjectKey(documentID, assetID, filename)
	if err := s.storage.Put(ctx, key, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("store asset: %w", err)
	}

	item := store.Asset{
		ID:          assetID,
		DocumentID:  documentID,
		ObjectKey:   key,
		ContentType: contentType,
		UsedIn:      []string{},
	}
	if err := s.store.InsertAsset(ctx, item); err != nil {
		if cleanupErr := s.storage.Delete(ctx, key); cleanupErr != nil {
			log.Printf("assets: cleanup %s after failed insert: %v", key, cleanupErr)
		}
		return nil, fmt.Errorf("register asset: %w", err)
	}
	return map[string]any{
		"id":          assetID,
		"objectKey":   key,
		"contentType": contentType,
		"usedIn":      []string{},
	}, nil
}

func (s *Service) ListAssets(ctx context.Context, ownerID, documentID string) ([]map[string]any, error) {
	if _, _, err := s.loadOwned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	items, err := s.store.ListAssets(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry := map[string]any{
			"id":          item.ID,
			"objectKey":   item.ObjectKey,
			"contentType": item.ContentType,
			"usedIn":      item.UsedIn,
			"createdAt":   item.CreatedAt,
		}
		if s.storage != nil {
			url, err := s.storage.PresignedGetURL(ctx, item.ObjectKey, time.Hour)
			if err != nil {
				log.Printf("assets: presign %s: %v", item.ObjectKey, err)
			} else {
				entry["url"] = url
			}
		}
		payload = append(payload, entry)
	}
	return payload, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Themes lists the catalog: presets with their token defaults, and the
// variants per section type.
func (s *Service) Themes() map[string]any {
	presets := make([]map[string]any, 0)
	for _, preset := range s.catalog.Presets() {
		presets = append(presets, map[string]any{
			"id":     preset.ID,
			"name":   preset.Name,
			"tokens": preset.Tokens,
		})
	}

	sections := make([]map[string]any, 0)
	for _, sectionType := range s.catalog.SectionTypes() {
		variants := make([]map[string]any, 0)
		for _, variant := range s.catalog.Variants(sectionType) {
			slots := make([]map[string]any, 0, len(variant.Slots))
			for _, slot := range variant.Slots {
				slots = append(slots, map[string]any{
					"name":    slot.Name,
					"kind":    slot.Kind,
					"default": slot.Default,
				})
			}
			variants = append(variants, map[string]any{
				"id":    variant.ID,
				"slots": slots,
			})
		}
		sections = append(sections, map[string]any{
			"sectionType": sectionType,
			"variants":    variants,
		})
	}

	return map[string]any{
		"presets":  presets,
		"sections": sections,
	}
}

// ReleaseLease gives up the caller's edit lease.
func (s *Service) ReleaseLease(ctx context.Context, ownerID, documentID string) error {
	if s.lease == nil {
		return nil
	}
	if err := s.lease.Release(ctx, documentID, ownerID); err != nil {
		if errors.Is(err, session.ErrLeaseLost) {
			return nil
		}
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (s *Service) checkLease(ctx context.Context, documentID, ownerID string) error {
	if s.lease == nil {
		return nil
	}
	err := s.lease.Acquire(ctx, documentID, ownerID)
	if errors.Is(err, session.ErrLeaseHeld) {
		return domainError(http.StatusConflict, "EDIT_LOCKED", "Another editor holds the edit lease", nil)
	}
	if err != nil {
		// Redis being down should not block editing; the version check still
		// rejects conflicting commits.
		log.Printf("lease: acquire %s: %v", documentID, err)
	}
	return nil
}

func (s *Service) loadOwned(ctx context.Context, ownerID, documentID string) (store.Document, doc.Content, error) {
	row, content, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, doc.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Invitation not found", nil)
		}
		return store.Document{}, doc.Content{}, fmt.Errorf("load invitation: %w", err)
	}
	if row.OwnerID != ownerID {
		return store.Document{}, doc.Content{}, domainError(http.StatusForbidden, "FORBIDDEN", "Not your invitation", nil)
	}
	return row, content, nil
}

func (s *Service) indexInvitation(row store.Document, content doc.Content) {
	if s.search == nil {
		return
	}
	text := content.PlainText()
	title := text
	if len(title) > 80 {
		title = title[:80]
	}
	s.search.IndexInvitation(search.InvitationRecord{
		ID:      row.ID,
		Title:   title,
		Text:    text,
		OwnerID: row.OwnerID,
		Status:  row.Status,
		Theme:   row.ThemePresetID,
	})
}

func (s *Service) invitationPayload(row store.Document, content doc.Content) map[string]any {
	document := materializeDocument(row, content)
	return map[string]any{
		"id":             row.ID,
		"ownerId":        row.OwnerID,
		"status":         row.Status,
		"themePresetId":  content.ThemePresetID,
		"version":        row.Version,
		"blocks":         content.Blocks,
		"data":           content.Data,
		"styleOverrides": content.StyleOverrides,
		"unboundPaths":   document.UnboundPaths(),
		"createdAt":      row.CreatedAt,
		"updatedAt":      row.UpdatedAt,
	}
}

func materializeDocument(row store.Document, content doc.Content) *doc.Document {
	blocks, data, overrides := content.Materialize()
	return &doc.Document{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		Status:         doc.Status(row.Status),
		Version:        row.Version,
		ThemePresetID:  content.ThemePresetID,
		Blocks:         blocks,
		Data:           data,
		StyleOverrides: overrides,
	}
}

func decodeOperations(raw json.RawMessage) ([]doc.Operation, error) {
	ops, err := doc.DecodeProposal(raw)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_OPERATIONS", err.Error(), nil)
	}
	return ops, nil
}

func commitPayload(result doc.CommitResult, snap store.Snapshot) map[string]any {
	changes := make([]map[string]any, 0, len(result.BindingChanges))
	for _, change := range result.BindingChanges {
		changes = append(changes, map[string]any{
			"blockId":    change.BlockID,
			"elementId":  change.ElementID,
			"oldAssetId": change.OldAssetID,
			"newAssetId": change.NewAssetID,
		})
	}
	unbound := result.UnboundPaths
	if unbound == nil {
		unbound = []string{}
	}
	return map[string]any{
		"version":        result.Version,
		"snapshot":       snapshotSummary(snap),
		"bindingChanges": changes,
		"unboundPaths":   unbound,
	}
}

func snapshotSummary(snap store.Snapshot) map[string]any {
	item := map[string]any{
		"id":        snap.ID,
		"number":    snap.Number,
		"type":      snap.Type,
		"createdAt": snap.CreatedAt,
	}
	if snap.Prompt != "" {
		item["prompt"] = snap.Prompt
	}
	if snap.Response != "" {
		item["response"] = snap.Response
	}
	if snap.ArchiveHash != "" {
		item["archiveHash"] = snap.ArchiveHash
	}
	return item
}

func themeError(err error) error {
	var terr *theme.Error
	if errors.As(err, &terr) {
		return domainError(http.StatusBadRequest, string(terr.Kind), terr.Error(), nil)
	}
	return err
}

func patchError(err error) error {
	var verr *doc.ValidationError
	if errors.As(err, &verr) {
		return domainError(http.StatusUnprocessableEntity, verr.Code, verr.Message, map[string]any{
			"opIndex": verr.OpIndex,
		})
	}
	return err
}
