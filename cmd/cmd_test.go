package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tealeg/xlsx/v3"
)

// fakeBackend serves images under /img/ and an Ollama-compatible
// /api/generate endpoint
func fakeBackend(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /img/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") == "missing.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("image bytes for " + r.PathValue("name")))
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": `{"type":"plate","short_description":"licence plate","alt":"a plate","verbose_description":"a licence plate"}`,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func setupEnv(t *testing.T, backendURL string) (csvPath, cachePath string) {
	t.Helper()
	dir := t.TempDir()
	cachePath = filepath.Join(dir, "analysis_cache.json")
	csvPath = filepath.Join(dir, "places.csv")

	csv := "URL,ImageURL,GooglePlaceID,ID\n" +
		fmt.Sprintf("https://example.com/a,%s/img/a.jpg,place-a,A\n", backendURL) +
		fmt.Sprintf("https://example.com/b,%s/img/missing.jpg,place-b,B\n", backendURL) +
		"https://example.com/c,,place-c,C\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("REVIEW_PROVIDER", "ollama")
	t.Setenv("OLLAMA_URL", backendURL)
	t.Setenv("REVIEW_CACHE_BACKEND", "file")
	t.Setenv("REVIEW_CACHE_PATH", cachePath)
	t.Setenv("REVIEW_CACHE_FAILURES", "")
	t.Setenv("REVIEW_SOURCE_URL", "")
	t.Setenv("PORT", "")
	return csvPath, cachePath
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestAnalyzeExportAndCache(t *testing.T) {
	backend, calls := fakeBackend(t)
	csvPath, _ := setupEnv(t, backend.URL)

	out := run(t, "analyze", csvPath)
	if !strings.Contains(out, "licence plate") {
		t.Errorf("analyze output missing description:\n%s", out)
	}
	if !strings.Contains(out, "Error analyzing image") {
		t.Errorf("analyze output missing failure placeholder:\n%s", out)
	}
	if calls.Load() != 1 {
		t.Errorf("model calls = %d, want 1", calls.Load())
	}

	xlsxPath := filepath.Join(t.TempDir(), "flagged.xlsx")
	run(t, "export", csvPath, "--include", "A,C", "--output", xlsxPath)
	if calls.Load() != 1 {
		t.Errorf("export should be served from cache, model calls = %d", calls.Load())
	}

	wb, err := xlsx.OpenFile(xlsxPath)
	if err != nil {
		t.Fatal(err)
	}
	if wb.Sheets[0].MaxRow != 3 {
		t.Errorf("exported %d rows, want header + 2", wb.Sheets[0].MaxRow)
	}

	list := run(t, "cache", "list")
	if !strings.Contains(list, "ok\t"+backend.URL+"/img/a.jpg") {
		t.Errorf("cache list = %q", list)
	}
	if strings.Contains(list, "missing.jpg") {
		t.Error("failure was cached although cache_failures is off")
	}
}

func TestPurgeFailures(t *testing.T) {
	backend, _ := fakeBackend(t)
	csvPath, _ := setupEnv(t, backend.URL)
	t.Setenv("REVIEW_CACHE_FAILURES", "true")

	run(t, "analyze", csvPath)
	if list := run(t, "cache", "list"); !strings.Contains(list, "failed\t"+backend.URL+"/img/missing.jpg") {
		t.Fatalf("failure not cached: %q", list)
	}

	run(t, "cache", "purge-failures")
	list := run(t, "cache", "list")
	if strings.Contains(list, "missing.jpg") {
		t.Errorf("failure survived purge: %q", list)
	}
	if !strings.Contains(list, "a.jpg") {
		t.Errorf("purge removed a good entry: %q", list)
	}

	run(t, "cache", "delete", backend.URL+"/img/a.jpg")
	if list := run(t, "cache", "list"); strings.TrimSpace(list) != "" {
		t.Errorf("cache not empty after delete: %q", list)
	}
}

func TestExportRequiresSelection(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"export", "places.csv"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected an error without --include or --all")
	}
}
