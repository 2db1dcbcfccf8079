package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/importer"
)

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	im, err := importer.New(cfg, nil)
	require.NoError(t, err)

	return New(im, maxUpload, nil)
}

func upload(t *testing.T, s *Server, query, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/imports"+query, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Kind    string   `json:"kind"`
		Message string   `json:"message"`
		Labels  []string `json:"labels"`
		Row     int      `json:"row"`
		Fields  []string `json:"fields"`
		Rows    int      `json:"rows"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListProfiles(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/profiles", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Profiles []struct {
			Name    string `json:"name"`
			Columns []struct {
				Field  string `json:"field"`
				Header string `json:"header"`
			} `json:"columns"`
		} `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Profiles, 1)
	assert.Equal(t, "contacts", body.Profiles[0].Name)
	assert.Len(t, body.Profiles[0].Columns, 3)
}

func TestImport_Success(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := upload(t, s, "", "people.csv", "Email,Name,Age\na@x.com,Ann,30\nb@x.com,Bob,x\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		BatchID string              `json:"batch_id"`
		Source  string              `json:"source"`
		Profile string              `json:"profile"`
		Records []map[string]string `json:"records"`
		Issues  []struct {
			Row   int    `json:"row"`
			Field string `json:"field"`
		} `json:"issues"`
		ErrorCount int `json:"error_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.NotEmpty(t, body.BatchID)
	assert.Equal(t, "people.csv", body.Source)
	assert.Equal(t, "contacts", body.Profile)
	assert.Equal(t, []map[string]string{
		{"name": "Ann", "email": "a@x.com", "age": "30"},
		{"name": "Bob", "email": "b@x.com", "age": "x"},
	}, body.Records)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, 3, body.Issues[0].Row)
	assert.Equal(t, "age", body.Issues[0].Field)
	assert.Equal(t, 1, body.ErrorCount)

	// Records keep column order on the wire.
	raw := rec.Body.String()
	assert.Less(t, strings.Index(raw, `"name"`), strings.Index(raw, `"email"`))
}

func TestImport_JSONKeepsMarkupCharacters(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := upload(t, s, "", "people.csv", "Name,Email,Age\nTom & <Jerry>,t@x.com,30\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, rec.Body.String(), `"Tom & <Jerry>"`)
	assert.NotContains(t, rec.Body.String(), `\u0026`)
}

func TestImport_CSVFormat(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := upload(t, s, "?format=csv", "people.csv", "Name,Email,Age\nAnn,a@x.com,30\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Batch-ID"))
	assert.Equal(t, "name,email,age\nAnn,a@x.com,30\n", rec.Body.String())
}

func TestImport_ExtractionErrors(t *testing.T) {
	s := newTestServer(t, 1<<20)

	tests := []struct {
		name    string
		content string
		kind    string
		check   func(t *testing.T, body errorBody)
	}{
		{
			name:    "empty",
			content: "",
			kind:    "empty_table",
			check:   func(t *testing.T, body errorBody) { assert.Equal(t, 0, body.Error.Rows) },
		},
		{
			name:    "missing header",
			content: "Name,Email\nAnn,a@x.com\n",
			kind:    "missing_header",
			check:   func(t *testing.T, body errorBody) { assert.Equal(t, []string{"Age"}, body.Error.Labels) },
		},
		{
			name:    "invalid row",
			content: "Name,Email,Age\nAnn,,30\n",
			kind:    "invalid_row",
			check: func(t *testing.T, body errorBody) {
				assert.Equal(t, 2, body.Error.Row)
				assert.Equal(t, []string{"email"}, body.Error.Fields)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, "", "people.csv", tt.content)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

			body := decodeError(t, rec)
			assert.Equal(t, tt.kind, body.Error.Kind)
			assert.NotEmpty(t, body.Error.Message)
			tt.check(t, body)
		})
	}
}

func TestImport_RequestErrors(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := upload(t, s, "?profile=payroll", "people.csv", "Name,Email,Age\nAnn,a@x.com,30\n")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_profile", decodeError(t, rec).Error.Kind)

	rec = upload(t, s, "", "notes.pdf", "%PDF-1.4 ...")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = upload(t, s, "", "book.xlsx", "not a zip")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unreadable_file", decodeError(t, rec).Error.Kind)

	rec = upload(t, s, "?format=pdf", "people.csv", "Name,Email,Age\nAnn,a@x.com,30\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/imports", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestImport_TooLarge(t *testing.T) {
	s := newTestServer(t, 256)

	rec := upload(t, s, "", "people.csv", "Name,Email,Age\n"+strings.Repeat("Ann,a@x.com,30\n", 100))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "upload_too_large", decodeError(t, rec).Error.Kind)
}
