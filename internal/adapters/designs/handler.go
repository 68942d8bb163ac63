package designs

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"scoutcore/internal/catalog"
	"scoutcore/internal/core"
	"scoutcore/pkg/designapi"
	"scoutcore/pkg/domain"
)

// Handler provides HTTP access to design projects, built designs, and
// asynchronous exports.
type Handler struct {
	Service *core.Service
	Catalog catalog.Catalog
	Exports ExportScheduler
	Version string
}

// NewHandler constructs a design HTTP handler. The export scheduler is
// optional and wired by the caller when an export worker is running.
func NewHandler(service *core.Service, cat catalog.Catalog) *Handler {
	return &Handler{Service: service, Catalog: cat}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "design service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/health":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleHealth(w, r)
	case path == "/api/v1/catalog":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"catalog": h.Catalog})
	case path == "/api/v1/projects":
		h.handleProjects(w, r)
	case strings.HasPrefix(path, "/api/v1/projects/"):
		h.handleProject(w, r, strings.TrimPrefix(path, "/api/v1/projects/"))
	case path == "/api/v1/designs":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"designs": h.Service.ListDesigns()})
	case strings.HasPrefix(path, "/api/v1/designs/"):
		h.handleDesign(w, r, strings.TrimPrefix(path, "/api/v1/designs/"))
	case strings.HasPrefix(path, "/api/v1/exports/"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExportGet(w, r, strings.TrimPrefix(path, "/api/v1/exports/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	version := h.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": version})
}

func (h *Handler) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"projects": h.Service.ListProjects()})
	case http.MethodPost:
		h.handleProjectCreate(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type factorPayload struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
	Stock  *float64 `json:"stock_concentration"`
}

type projectRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	FinalVolume float64         `json:"final_volume"`
	Factors     []factorPayload `json:"factors"`
}

type projectResponse struct {
	Project    core.Project       `json:"project"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

type designResponse struct {
	Design     core.DesignRecord  `json:"design"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

func (h *Handler) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid project request payload")
		return
	}

	project := core.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		FinalVolume: req.FinalVolume,
	}
	for _, f := range req.Factors {
		project.Factors = append(project.Factors, core.Factor{Name: f.Name, Levels: f.Levels, Stock: f.Stock})
	}

	created, res, err := h.Service.CreateProject(r.Context(), project)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: created, Violations: res.Violations})
}

func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.SplitN(remainder, "/", 2)
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			project, err := h.Service.GetProject(id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"project": project})
		case http.MethodDelete:
			if _, err := h.Service.DeleteProject(r.Context(), id); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	rest := segments[1]
	switch {
	case rest == "design":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleBuildDesign(w, r, id)
	case rest == "designs":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, err := h.Service.GetProject(id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"designs": h.Service.ListDesignsByProject(id)})
	case strings.HasPrefix(rest, "factors/"):
		name := strings.TrimPrefix(rest, "factors/")
		if name == "" {
			http.NotFound(w, r)
			return
		}
		h.handleFactor(w, r, id, name)
	default:
		writeError(w, http.StatusNotFound, "project endpoint not found")
	}
}

type factorBody struct {
	Levels []string `json:"levels"`
	Stock  *float64 `json:"stock_concentration"`
}

// handleFactor upserts or removes one named factor. PUT follows replace
// semantics: an existing factor keeps its position in the enumeration order,
// a new factor is appended.
func (h *Handler) handleFactor(w http.ResponseWriter, r *http.Request, projectID, name string) {
	switch r.Method {
	case http.MethodPut:
		var req factorBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid factor request payload")
			return
		}
		project, err := h.Service.GetProject(projectID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		factor := core.Factor{Name: name, Levels: req.Levels, Stock: req.Stock}
		trimmed := strings.TrimSpace(name)
		exists := false
		for _, f := range project.Factors {
			if f.Name == trimmed {
				exists = true
				break
			}
		}
		var updated core.Project
		var res core.Result
		if exists {
			updated, res, err = h.Service.UpdateFactor(r.Context(), projectID, factor)
		} else {
			updated, res, err = h.Service.AddFactor(r.Context(), projectID, factor)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projectResponse{Project: updated, Violations: res.Violations})
	case http.MethodDelete:
		updated, res, err := h.Service.RemoveFactor(r.Context(), projectID, name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, projectResponse{Project: updated, Violations: res.Violations})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type buildRequest struct {
	Strict bool `json:"strict"`
}

func (h *Handler) handleBuildDesign(w http.ResponseWriter, r *http.Request, projectID string) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid design request payload")
		return
	}
	record, res, err := h.Service.BuildDesign(r.Context(), projectID, core.BuildOptions{Strict: req.Strict})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, designResponse{Design: record, Violations: res.Violations})
}

func (h *Handler) handleDesign(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.SplitN(remainder, "/", 2)
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			record, err := h.Service.GetDesign(id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"design": record})
		case http.MethodDelete:
			if _, err := h.Service.DeleteDesign(r.Context(), id); err != nil {
				writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch segments[1] {
	case "tracking.csv":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		record, err := h.Service.GetDesign(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		streamCSV(w, "tracking", record.Tables.TrackingHeaders, record.Tables.TrackingRows)
	case "volumes.csv":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		record, err := h.Service.GetDesign(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		streamCSV(w, "volumes", record.Tables.VolumeHeaders, volumeRows(record.Tables.VolumeRows))
	case "exports":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExportCreate(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "design endpoint not found")
	}
}

type exportRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
	Reason      string   `json:"reason"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request, designID string) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}

	formats := make([]designapi.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		format, ok := designapi.ParseFormat(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported export format")
			return
		}
		formats = append(formats, format)
	}

	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		DesignID:    designID,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		var notFound core.ErrNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportGet(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

// writeServiceError maps domain and service errors onto HTTP status codes
// with structured payloads clients can act on.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		notFound   core.ErrNotFound
		validation domain.ValidationError
		capacity   domain.CapacityError
		parse      domain.ParseError
		infeasible domain.DesignInfeasibleError
		blocked    domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		payload := map[string]any{"error": validation.Error(), "kind": "validation"}
		if validation.Field != "" {
			payload["field"] = validation.Field
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.As(err, &capacity):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":        capacity.Error(),
			"kind":         "capacity",
			"combinations": capacity.Count,
			"limit":        capacity.Limit,
		})
	case errors.As(err, &parse):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  parse.Error(),
			"kind":   "parse",
			"factor": parse.Factor,
		})
	case errors.As(err, &infeasible):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": infeasible.Error(),
			"kind":  "infeasible",
			"wells": infeasible.Wells,
		})
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      blocked.Error(),
			"kind":       "rule_violation",
			"violations": blocked.Result.Violations,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func volumeRows(rows [][]float64) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		out[i] = cells
	}
	return out
}

func streamCSV(w http.ResponseWriter, kind string, headers []string, rows [][]string) {
	filename := fmt.Sprintf("%s-%s.csv", kind, time.Now().UTC().Format("20060102T150405Z"))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return
		}
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprint(v)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
