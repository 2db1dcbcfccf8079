package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
	"github.com/ginjaninja78/rowimport/internal/output"
	"github.com/ginjaninja78/rowimport/internal/sheet"
	"github.com/ginjaninja78/rowimport/internal/types"
	"github.com/ginjaninja78/rowimport/internal/validation"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"profiles": s.importer.Profiles()})
}

// importResponse is the JSON body of a successful import.
type importResponse struct {
	BatchID      string              `json:"batch_id"`
	Source       string              `json:"source"`
	Profile      string              `json:"profile"`
	Columns      []string            `json:"columns"`
	RowsRead     int                 `json:"rows_read"`
	Records      []json.RawMessage   `json:"records"`
	Issues       []*validation.Issue `json:"issues"`
	ErrorCount   int                 `json:"error_count"`
	WarningCount int                 `json:"warning_count"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && !output.IsKnown(format) {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown format "+strconv.Quote(format), nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.uploadError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", `multipart field "file" is required`, nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.uploadError(w, err)
		return
	}

	if _, err := sheet.DetectFormat(header.Filename, data); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_file_type", err.Error(), nil)
		return
	}

	batch, err := s.importer.Import(r.Context(), r.URL.Query().Get("profile"), header.Filename, data)
	if err != nil {
		s.importError(w, header.Filename, err)
		return
	}

	s.logger.Info("Imported batch %s: %s via %s, %d record(s), %d issue(s)",
		batch.ID, batch.Source, batch.Profile, len(batch.Records), len(batch.Issues))

	if format == "" || format == output.FormatJSON {
		s.writeBatchJSON(w, batch)
		return
	}

	w.Header().Set("Content-Type", output.ContentType(format))
	w.Header().Set("X-Batch-ID", batch.ID)
	w.WriteHeader(http.StatusOK)
	if err := output.Write(w, format, batch.Columns, batch.Records); err != nil {
		s.logger.Error("Failed to write batch %s: %v", batch.ID, err)
	}
}

func (s *Server) writeBatchJSON(w http.ResponseWriter, batch *types.Batch) {
	records := make([]json.RawMessage, len(batch.Records))
	for i, record := range batch.Records {
		obj, err := output.OrderedJSON(batch.Columns, record)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to encode records", nil)
			return
		}
		records[i] = obj
	}

	writeJSON(w, http.StatusOK, importResponse{
		BatchID:      batch.ID,
		Source:       batch.Source,
		Profile:      batch.Profile,
		Columns:      batch.Columns,
		RowsRead:     batch.RowsRead,
		Records:      records,
		Issues:       batch.Issues,
		ErrorCount:   batch.ErrorCount,
		WarningCount: batch.WarningCount,
	})
}

// uploadError maps request body failures to 413 or 400.
func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large",
			"upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart upload: "+err.Error(), nil)
}

// importError maps an importer failure to a status and error body.
func (s *Server) importError(w http.ResponseWriter, fileName string, err error) {
	var (
		empty   *extract.EmptyTableError
		missing *extract.MissingHeaderError
		invalid *extract.InvalidRowError
	)

	switch {
	case errors.As(err, &empty):
		writeError(w, http.StatusUnprocessableEntity, extract.KindEmptyTable, err.Error(), map[string]any{
			"rows": empty.Rows,
		})
	case errors.As(err, &missing):
		writeError(w, http.StatusUnprocessableEntity, extract.KindMissingHeader, err.Error(), map[string]any{
			"labels": missing.Labels,
		})
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnprocessableEntity, extract.KindInvalidRow, err.Error(), map[string]any{
			"row":    invalid.Row,
			"fields": invalid.Fields,
		})
	case errors.Is(err, config.ErrUnknownProfile):
		writeError(w, http.StatusNotFound, "unknown_profile", err.Error(), nil)
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_file_type", err.Error(), nil)
	case errors.Is(err, sheet.ErrSheetNotFound):
		writeError(w, http.StatusUnprocessableEntity, "sheet_not_found", err.Error(), nil)
	case errors.As(err, new(*sheet.DecodeError)):
		writeError(w, http.StatusUnprocessableEntity, "unreadable_file", err.Error(), nil)
	default:
		s.logger.Error("Import of %s failed: %v", fileName, err)
		writeError(w, http.StatusInternalServerError, "internal", "import failed", nil)
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string, details map[string]any) {
	body := map[string]any{
		"kind":    kind,
		"message": message,
	}
	for k, v := range details {
		body[k] = v
	}
	writeJSON(w, status, map[string]any{"error": body})
}
