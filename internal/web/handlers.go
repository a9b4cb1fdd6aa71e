package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/FuzzyCleanse/internal/core"
	"github.com/JonMunkholm/FuzzyCleanse/internal/export"
	"github.com/JonMunkholm/FuzzyCleanse/internal/filter"
	"github.com/JonMunkholm/FuzzyCleanse/internal/loader"
	"github.com/JonMunkholm/FuzzyCleanse/internal/logging"
	"github.com/JonMunkholm/FuzzyCleanse/internal/web/templates"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templ.Handler(templates.IndexPage(templates.IndexParams{
		MaxFiles:        s.cfg.Upload.MaxFiles,
		DatabaseEnabled: s.service.DatabaseEnabled(),
	})).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"loads":    s.service.Limiter().Status(),
	})
}

// handleCreateSession loads the multipart "files" field into a new session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxBody := s.cfg.Upload.MaxFileSize * int64(s.cfg.Upload.MaxFiles)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: request exceeds %d bytes", loader.ErrFileTooLarge, maxBody))
			return
		}
		s.respondBadRequest(w, r, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}

	uploads, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sum, err := s.service.CreateSession(withRequestMetadata(r.Context(), r), uploads)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

// openUploads opens every file part. The returned func closes whatever
// was opened, also on error.
func openUploads(headers []*multipart.FileHeader) ([]core.Upload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]core.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open %s: %w", h.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, core.Upload{Name: h.Filename, Reader: f})
	}
	return uploads, closeAll, nil
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFieldValues(w http.ResponseWriter, r *http.Request) {
	field, err := fieldParam(r)
	if err != nil {
		s.respondBadRequest(w, r, "invalid field name")
		return
	}
	values, err := s.service.FieldValues(chi.URLParam(r, "sessionID"), field)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": field, "values": values})
}

// ruleRequest is the body of PUT /rules/{field}. Keywords may be given as
// a list or as comma-separated text; both are combined.
type ruleRequest struct {
	Mode         string   `json:"mode"`
	Match        string   `json:"match"`
	Keywords     []string `json:"keywords"`
	KeywordsText string   `json:"keywords_text"`
	Threshold    *float64 `json:"threshold"`
}

func (s *Server) handleSetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	field, err := fieldParam(r)
	if err != nil {
		s.respondBadRequest(w, r, "invalid field name")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.respondBadRequest(w, r, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		req.Mode = filter.Include.String()
	}
	if req.Match == "" {
		req.Match = filter.Exact.String()
	}

	mode, err := filter.ParseMode(req.Mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	match, err := filter.ParseMatchType(req.Match)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	keywords := append(req.Keywords, filter.ParseKeywords(req.KeywordsText)...)

	if err := s.service.SetFilterRule(id, field, mode, match, keywords, req.Threshold); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.WithSession(r.Context(), id).Info("filter rule updated", "field", field, "mode", mode.String(), "match", match.String())
	s.writeRules(w, r, id)
}

func (s *Server) handleClearRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	field, err := fieldParam(r)
	if err != nil {
		s.respondBadRequest(w, r, "invalid field name")
		return
	}
	if err := s.service.ClearFilterRule(id, field); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeRules(w, r, id)
}

func (s *Server) handleResetRules(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.service.ResetFilterRules(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeRules(w, r, id)
}

func (s *Server) handleUndoRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.service.UndoFilterRule(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeRules(w, r, id)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	s.writeRules(w, r, chi.URLParam(r, "sessionID"))
}

// rulesResponse lists the active rules and how many changes can be undone.
type rulesResponse struct {
	Rules     []filter.Rule `json:"rules"`
	UndoDepth int           `json:"undoDepth"`
}

func (s *Server) writeRules(w http.ResponseWriter, r *http.Request, id string) {
	sum, err := s.service.Session(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Rules: sum.Rules, UndoDepth: sum.UndoDepth})
}

// resultResponse is the JSON preview of a filter run.
type resultResponse struct {
	*filter.Result
	Fields []string   `json:"fields"`
	Rows   [][]string `json:"rows"`
	Shown  int        `json:"shown"`
}

// handleResult runs the filter and returns up to limit rows, as JSON or as
// an HTML table for htmx.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.cfg.Filter.PreviewLimit)
	if limit > s.cfg.Filter.PreviewLimit {
		limit = s.cfg.Filter.PreviewLimit
	}

	res, err := s.service.RunFilter(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	preview := res.Table.Head(limit)

	if wantsHTML(r) {
		templ.Handler(templates.ResultTable(templates.ResultParams{
			Kept:   res.OutputRows,
			Total:  res.InputRows,
			Fields: preview.Fields(),
			Rows:   preview.Records(),
		})).ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		Result: res,
		Fields: preview.Fields(),
		Rows:   preview.Records(),
		Shown:  preview.Len(),
	})
}

// handleExport streams the filtered result as a file download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondBadRequest(w, r, err.Error())
		return
	}

	name, t, err := s.service.ExportTable(r.Context(), id, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.Write(w, t, format); err != nil {
		// Headers are already sent.
		logging.WithSession(r.Context(), id).Error("export write failed", "format", format, "error", err)
		return
	}
	logging.WithSession(r.Context(), id).Info("result exported", "format", format, "rows", t.Len(), "file", name)
}

type postgresExportRequest struct {
	Table string `json:"table"`
}

func (s *Server) handleExportPostgres(w http.ResponseWriter, r *http.Request) {
	var req postgresExportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.respondBadRequest(w, r, "invalid JSON body")
		return
	}

	n, err := s.service.ExportPostgres(r.Context(), chi.URLParam(r, "sessionID"), req.Table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": req.Table, "rows": n})
}

// fieldParam returns the unescaped {field} route parameter.
func fieldParam(r *http.Request) (string, error) {
	return url.PathUnescape(chi.URLParam(r, "field"))
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// writeJSON encodes v with the given status. Encoding errors are logged
// since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
