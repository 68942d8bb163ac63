package designs

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"scoutcore/internal/blob"
	"scoutcore/pkg/designapi"
	"scoutcore/pkg/domain"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportArtifact captures one stored rendering of a design result.
type ExportArtifact struct {
	Key         string           `json:"key"`
	Format      designapi.Format `json:"format"`
	ContentType string           `json:"content_type"`
	SizeBytes   int64            `json:"size_bytes"`
	ETag        string           `json:"etag,omitempty"`
	URL         string           `json:"url,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ExportRecord tracks an export request and its resulting artifacts.
type ExportRecord struct {
	ID          string             `json:"id"`
	DesignID    string             `json:"design_id"`
	ProjectID   string             `json:"project_id"`
	Formats     []designapi.Format `json:"formats"`
	Status      ExportStatus       `json:"status"`
	Error       string             `json:"error,omitempty"`
	Artifacts   []ExportArtifact   `json:"artifacts,omitempty"`
	RequestedBy string             `json:"requested_by,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// ExportInput represents an enqueue request for the worker.
type ExportInput struct {
	DesignID    string
	Formats     []designapi.Format
	RequestedBy string
	Reason      string
}

// ExportScheduler queues design export requests and exposes status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// DesignSource resolves persisted design records for export.
type DesignSource interface {
	GetDesign(id string) (domain.DesignRecord, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	DesignID   string         `json:"design_id"`
	Status     ExportStatus   `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

const exportAuditAction = "design_export"

// Worker renders design exports asynchronously and persists the artifacts in
// a blob store.
type Worker struct {
	designs DesignSource
	store   blob.Store
	audit   AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

type renderedArtifact struct {
	Artifact ExportArtifact
	Payload  []byte
}

// NewWorker constructs an export worker. The blob store and audit logger are
// optional; without a store artifacts stay in-memory metadata only.
func NewWorker(designs DesignSource, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		designs: designs,
		store:   store,
		audit:   audit,
		queue:   make(chan exportTask, 32),
		jobs:    make(map[string]*ExportRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record. The
// design must exist at enqueue time; formats default to every supported one.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.designs == nil {
		return ExportRecord{}, fmt.Errorf("design source not configured")
	}
	if strings.TrimSpace(input.DesignID) == "" {
		return ExportRecord{}, fmt.Errorf("design id required")
	}
	design, err := w.designs.GetDesign(input.DesignID)
	if err != nil {
		return ExportRecord{}, err
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = designapi.Formats()
	}
	uniqFormats := make([]designapi.Format, 0, len(formats))
	seen := make(map[designapi.Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		switch format {
		case designapi.FormatJSON, designapi.FormatCSV:
		default:
			return ExportRecord{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniqFormats = append(uniqFormats, format)
		seen[format] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		DesignID:    design.ID,
		ProjectID:   design.ProjectID,
		Formats:     uniqFormats,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queuedSnapshot := record.copy()
	w.mu.Unlock()

	if w.audit != nil {
		w.audit.Record(ctx, AuditEntry{
			ID:         newID(),
			Action:     exportAuditAction,
			Actor:      input.RequestedBy,
			DesignID:   design.ID,
			Status:     ExportStatusQueued,
			Reason:     input.Reason,
			OccurredAt: now,
		})
	}

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		return ExportRecord{}, fmt.Errorf("export queue full")
	}

	return queuedSnapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.RUnlock()
		return ExportRecord{}, false
	}
	snapshot := record.copy()
	w.mu.RUnlock()
	return snapshot, true
}

func (w *Worker) process(task exportTask) {
	record := w.snapshot(task.id)
	if record == nil {
		return
	}

	design, err := w.designs.GetDesign(task.input.DesignID)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("design %s missing: %v", task.input.DesignID, err))
		return
	}

	w.updateStatus(task.id, ExportStatusRunning, "")

	result := designapi.ResultFromRecord(design, time.Now().UTC())

	exportArtifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		rendered, err := materialize(task.id, format, result)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		if w.store != nil {
			stored, err := w.persistArtifact(rendered)
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			exportArtifacts = append(exportArtifacts, stored)
		} else {
			exportArtifacts = append(exportArtifacts, rendered.Artifact)
		}
	}

	w.complete(task.id, exportArtifacts)
}

// persistArtifact writes the rendered payload and fills storage-derived
// fields: size, etag, and a retrieval URL, presigned when the backend can.
func (w *Worker) persistArtifact(rendered renderedArtifact) (ExportArtifact, error) {
	artifact := rendered.Artifact
	info, err := w.store.Put(w.ctx, artifact.Key, bytes.NewReader(rendered.Payload), blob.PutOptions{
		ContentType: artifact.ContentType,
		Metadata: map[string]string{
			"export_format": string(artifact.Format),
		},
	})
	if err != nil {
		return ExportArtifact{}, err
	}
	artifact.SizeBytes = info.Size
	if info.ETag != "" {
		artifact.ETag = info.ETag
	}
	if !info.LastModified.IsZero() {
		artifact.CreatedAt = info.LastModified
	}
	if url, err := w.store.PresignURL(w.ctx, artifact.Key, blob.SignedURLOptions{Method: "GET"}); err == nil && url != "" {
		artifact.URL = url
	} else {
		artifact.URL = info.URL
	}
	return artifact, nil
}

func (w *Worker) snapshot(id string) *ExportRecord {
	w.mu.RLock()
	record, ok := w.jobs[id]
	w.mu.RUnlock()
	if !ok {
		return nil
	}
	return record
}

func (w *Worker) updateStatus(id string, status ExportStatus, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	if w.audit != nil {
		entry := AuditEntry{
			ID:         newID(),
			Action:     exportAuditAction,
			Actor:      w.actorFor(id),
			DesignID:   w.designFor(id),
			Status:     status,
			OccurredAt: now,
		}
		if message != "" {
			entry.Metadata = map[string]any{"note": message}
		}
		w.audit.Record(w.ctx, entry)
	}
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         newID(),
			Action:     exportAuditAction,
			Actor:      w.actorFor(id),
			DesignID:   w.designFor(id),
			Status:     ExportStatusSucceeded,
			Metadata:   map[string]any{"artifacts": len(artifacts)},
			OccurredAt: now,
		})
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	if w.audit != nil {
		w.audit.Record(w.ctx, AuditEntry{
			ID:         newID(),
			Action:     exportAuditAction,
			Actor:      w.actorFor(id),
			DesignID:   w.designFor(id),
			Status:     ExportStatusFailed,
			Metadata:   map[string]any{"error": reason},
			OccurredAt: now,
		})
	}
}

func (w *Worker) actorFor(id string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return record.RequestedBy
	}
	return ""
}

func (w *Worker) designFor(id string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if record, ok := w.jobs[id]; ok {
		return record.DesignID
	}
	return ""
}

// materialize renders the design result into one artifact payload. Artifact
// keys are namespaced by export so repeated exports of the same design never
// collide in the create-only blob store.
func materialize(exportID string, format designapi.Format, result designapi.DesignResult) (renderedArtifact, error) {
	key := fmt.Sprintf("exports/%s/%s.%s", exportID, result.DesignID, format)
	switch format {
	case designapi.FormatJSON:
		payload, err := json.Marshal(result)
		if err != nil {
			return renderedArtifact{}, fmt.Errorf("marshal json: %w", err)
		}
		return renderedArtifact{
			Artifact: ExportArtifact{
				Key:         key,
				Format:      designapi.FormatJSON,
				ContentType: "application/json",
				SizeBytes:   int64(len(payload)),
				CreatedAt:   time.Now().UTC(),
			},
			Payload: payload,
		}, nil
	case designapi.FormatCSV:
		payload, err := renderCSV(result)
		if err != nil {
			return renderedArtifact{}, err
		}
		return renderedArtifact{
			Artifact: ExportArtifact{
				Key:         key,
				Format:      designapi.FormatCSV,
				ContentType: "text/csv",
				SizeBytes:   int64(len(payload)),
				CreatedAt:   time.Now().UTC(),
			},
			Payload: payload,
		}, nil
	default:
		return renderedArtifact{}, fmt.Errorf("unsupported export format %s", format)
	}
}

// renderCSV emits the tracking table followed by a blank line and the volume
// table, mirroring the worksheet layout collaborators paste into robots.
func renderCSV(result designapi.DesignResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	for i, table := range []designapi.Table{result.Tracking, result.Volumes} {
		if i > 0 {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return nil, err
			}
			buf.WriteString("\n")
		}
		headers := make([]string, len(table.Columns))
		for j, column := range table.Columns {
			headers[j] = column.Name
		}
		if err := writer.Write(headers); err != nil {
			return nil, err
		}
		for _, row := range table.Rows {
			record := make([]string, len(row))
			for j, cell := range row {
				record[j] = formatValue(cell)
			}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]designapi.Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog captures audit entries in-memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(ctx context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
