package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgallion1/parsemed/internal/store"
	"github.com/xuri/excelize/v2"
)

const savedTable = `{"table_1": [{"Group": "SOA", "N": "32"}, {"Group": "TTA", "N": "25"}]}`

func saveTable(t *testing.T, env *testEnv, fields map[string]string, files ...formFile) map[string]any {
	t.Helper()
	rec := env.do(t, multipartRequest(t, "/save-extracted-data", fields, files...))
	expectStatus(t, rec, http.StatusOK)
	body := decode(t, rec)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	return body["record"].(map[string]any)
}

func TestSaveExtractedData_WithPDF(t *testing.T) {
	env := newTestEnv(t, nil)
	pdf := []byte("%PDF-1.4 fake")
	rec := saveTable(t, env, map[string]string{"data": savedTable}, formFile{"file", "trial.pdf", pdf})

	if rec["filename"] != "trial.pdf" {
		t.Errorf("filename = %v", rec["filename"])
	}
	dataKey, _ := rec["data_key"].(string)
	pdfKey, _ := rec["pdf_key"].(string)
	if !strings.HasPrefix(dataKey, "extracted_data/") || !strings.HasSuffix(pdfKey, "_trial.pdf") {
		t.Fatalf("keys = %q, %q", dataKey, pdfKey)
	}

	stored, err := env.blobs.Get(context.Background(), pdfKey)
	if err != nil || !bytes.Equal(stored, pdf) {
		t.Errorf("pdf blob = %q, %v", stored, err)
	}
	if _, err := env.blobs.Get(context.Background(), dataKey); err != nil {
		t.Errorf("data blob: %v", err)
	}
	rows := rec["extracted_json"].(map[string]any)["table_1"].([]any)
	if len(rows) != 2 {
		t.Errorf("extracted_json rows = %v", rows)
	}
}

func TestSaveExtractedData_WithoutFile(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := saveTable(t, env, map[string]string{"data": savedTable, "filename": "notes.pdf"})
	if rec["pdf_key"] != nil {
		t.Errorf("pdf_key = %v, want null", rec["pdf_key"])
	}
}

func TestSaveExtractedData_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing data", map[string]string{"filename": "a.pdf"}},
		{"invalid data", map[string]string{"filename": "a.pdf", "data": "{"}},
		{"missing filename", map[string]string{"data": savedTable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			expectStatus(t, env.do(t, multipartRequest(t, "/save-extracted-data", tt.fields)), http.StatusBadRequest)
		})
	}
}

func TestGetSavedTables(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/get-saved-tables", nil))
	expectStatus(t, rec, http.StatusOK)
	if tables := decode(t, rec)["tables"].([]any); len(tables) != 0 {
		t.Fatalf("tables = %v, want empty list", tables)
	}

	saveTable(t, env, map[string]string{"data": savedTable, "filename": "first.pdf"})
	saveTable(t, env, map[string]string{"data": savedTable, "filename": "second.pdf"})

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/get-saved-tables", nil))
	expectStatus(t, rec, http.StatusOK)
	tables := decode(t, rec)["tables"].([]any)
	if len(tables) != 2 {
		t.Fatalf("tables = %v", tables)
	}
	if got := tables[0].(map[string]any)["filename"]; got != "second.pdf" {
		t.Errorf("newest first: got %v", got)
	}
}

func TestExportTable(t *testing.T) {
	env := newTestEnv(t, nil)
	saved := saveTable(t, env, map[string]string{"data": savedTable, "filename": "trial.pdf"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/tables/"+saved["id"].(string)+"/export.xlsx", nil))
	expectStatus(t, rec, http.StatusOK)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "trial.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("table_1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 || rows[2][0] != "TTA" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExportTable_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	expectStatus(t, env.do(t, httptest.NewRequest(http.MethodGet, "/tables/nope/export.xlsx", nil)), http.StatusNotFound)
}

func TestFinalizeExtractedDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.postJSON(t, http.MethodPost, "/finalize-extracted-details", map[string]any{
		"filename":       "trial.pdf",
		"pdf_key":        "20250101T000000Z_trial.pdf",
		"extracted_json": map[string]any{"Patient Age": "58"},
	})
	expectStatus(t, rec, http.StatusOK)

	saved := decode(t, rec)["record"].(map[string]any)
	if saved["pdf_key"] != "20250101T000000Z_trial.pdf" {
		t.Errorf("pdf_key = %v", saved["pdf_key"])
	}
	got, err := env.records.Select(context.Background(), store.ExtractedDetails, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("details = %v, %v", got, err)
	}
	if got[0]["extracted_json"].(map[string]any)["Patient Age"] != "58" {
		t.Errorf("extracted_json = %v", got[0]["extracted_json"])
	}
}

func TestFinalizeExtractedDetails_NullPDFKey(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.postJSON(t, http.MethodPost, "/finalize-extracted-details", map[string]any{
		"filename":       "trial.pdf",
		"pdf_key":        nil,
		"extracted_json": map[string]any{"a": "b"},
	})
	expectStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["record"].(map[string]any)["pdf_key"]; got != nil {
		t.Errorf("pdf_key = %v, want null", got)
	}
}

func TestFinalizeExtractedDetails_MissingJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.postJSON(t, http.MethodPost, "/finalize-extracted-details", map[string]any{"filename": "trial.pdf"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestConfigurationLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	template := func(names ...string) map[string]any {
		var attrs []map[string]string
		for _, n := range names {
			attrs = append(attrs, map[string]string{"name": n, "query": "What is the " + n + "?"})
		}
		return map[string]any{"attributes": attrs}
	}

	rec := env.postJSON(t, http.MethodPost, "/save-configuration", map[string]any{
		"name": "  demographics ", "template_json": template("Age", "Sex"),
	})
	expectStatus(t, rec, http.StatusOK)
	cfg := decode(t, rec)["configuration"].(map[string]any)
	id := cfg["id"].(string)
	if cfg["name"] != "demographics" {
		t.Errorf("name = %v", cfg["name"])
	}

	rec = env.postJSON(t, http.MethodPut, "/update-configuration/"+id, map[string]any{
		"name": "demographics v2", "template_json": template("Age"),
	})
	expectStatus(t, rec, http.StatusOK)
	updated := decode(t, rec)["configuration"].(map[string]any)
	attrs := updated["template_json"].(map[string]any)["attributes"].([]any)
	if updated["name"] != "demographics v2" || len(attrs) != 1 {
		t.Errorf("updated = %v", updated)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/get-configurations", nil))
	expectStatus(t, rec, http.StatusOK)
	body := decode(t, rec)
	if body["success"] != true || len(body["configurations"].([]any)) != 1 {
		t.Errorf("configurations = %v", body)
	}
}

func TestConfiguration_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	valid := map[string]any{"attributes": []map[string]string{{"name": "Age", "query": "Age?"}}}
	tests := []struct {
		name   string
		method string
		path   string
		body   map[string]any
		want   int
	}{
		{"missing name", http.MethodPost, "/save-configuration", map[string]any{"template_json": valid}, http.StatusBadRequest},
		{"empty template", http.MethodPost, "/save-configuration", map[string]any{"name": "x", "template_json": map[string]any{"attributes": []any{}}}, http.StatusBadRequest},
		{"duplicate attribute", http.MethodPost, "/save-configuration", map[string]any{"name": "x", "template_json": map[string]any{"attributes": []map[string]string{{"name": "a", "query": "b"}, {"name": "a", "query": "c"}}}}, http.StatusBadRequest},
		{"unknown id", http.MethodPut, "/update-configuration/missing", map[string]any{"name": "x", "template_json": valid}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.postJSON(t, tt.method, tt.path, tt.body), tt.want)
		})
	}
}
