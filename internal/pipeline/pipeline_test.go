package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/decadal/internal/cache"
	"github.com/ppiankov/decadal/internal/dataset"
	"github.com/ppiankov/decadal/internal/model"
)

const exampleCSV = `unique_number,id_no,name_en,date_inscribed,category
1,101,Site One,1978,Cultural
2,102,Site Two,1980,Natural
3,103,Site Three,2015,Mixed
4,104,Site Four,1925,Cultural
`

var artifactNames = []string{"seventies", "eighties", "nineties", "aughties", "teensies", "data"}

func testConfig(t *testing.T, input string) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Input.Path = input
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.Workers = 3
	cfg.Cache.Enabled = false
	cfg.HTTP.RespectRobots = false
	cfg.RateLimiting.RequestsPerSecond = 0
	return cfg
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readRecords(t *testing.T, path string) []map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func idsOf(records []map[string]string) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r[model.FieldIDNo]
	}
	return ids
}

func runPipeline(t *testing.T, cfg *model.Config) *model.RunReport {
	t.Helper()
	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return report
}

func TestPipeline_Run_EndToEnd(t *testing.T) {
	cfg := testConfig(t, writeInput(t, exampleCSV))
	report := runPipeline(t, cfg)

	expected := map[string][]string{
		"seventies": {"101"},
		"eighties":  {"102"},
		"nineties":  {},
		"aughties":  {},
		"teensies":  {"103"},
		"data":      {"101", "102", "103", "104"},
	}

	for name, want := range expected {
		got := idsOf(readRecords(t, filepath.Join(cfg.Output.Dir, name+".json")))
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}

	if report.Rows != 4 {
		t.Errorf("expected 4 rows, got %d", report.Rows)
	}
	if report.Unbucketed != 1 {
		t.Errorf("expected 1 unbucketed row, got %d", report.Unbucketed)
	}
	if len(report.Artifacts) != len(artifactNames) {
		t.Fatalf("expected %d artifacts, got %d", len(artifactNames), len(report.Artifacts))
	}
	for i, a := range report.Artifacts {
		if a.Name != artifactNames[i] {
			t.Errorf("artifact %d: expected %s, got %s", i, artifactNames[i], a.Name)
		}
	}
}

func TestPipeline_Run_RoundTrip(t *testing.T) {
	input := writeInput(t, exampleCSV)
	cfg := testConfig(t, input)
	runPipeline(t, cfg)

	ds, err := dataset.LoadFile(input, dataset.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	decoded := readRecords(t, filepath.Join(cfg.Output.Dir, "data.json"))
	if len(decoded) != ds.Len() {
		t.Fatalf("expected %d records, got %d", ds.Len(), len(decoded))
	}
	for i, rec := range ds.Records {
		if !reflect.DeepEqual(map[string]string(rec), decoded[i]) {
			t.Errorf("record %d differs: %v vs %v", i, rec, decoded[i])
		}
	}
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	cfg := testConfig(t, writeInput(t, exampleCSV))

	runPipeline(t, cfg)
	first := make(map[string][]byte)
	for _, name := range artifactNames {
		data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, name+".json"))
		if err != nil {
			t.Fatal(err)
		}
		first[name] = data
	}

	runPipeline(t, cfg)
	for _, name := range artifactNames {
		data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, name+".json"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first[name], data) {
			t.Errorf("%s changed between runs", name)
		}
	}
}

func TestPipeline_Run_YAML(t *testing.T) {
	cfg := testConfig(t, writeInput(t, exampleCSV))
	cfg.Output.Format = model.FormatYAML
	runPipeline(t, cfg)

	for _, name := range artifactNames {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name+".yaml")); err != nil {
			t.Errorf("expected %s.yaml: %v", name, err)
		}
	}
}

func TestPipeline_Run_ValueErrorWritesNothing(t *testing.T) {
	cfg := testConfig(t, writeInput(t, exampleCSV+"5,105,Bad Year,19seventy,Cultural\n"))

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var ve *model.ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValueError, got %v", err)
	}
	if ve.Row != 5 || ve.ID != "105" {
		t.Errorf("error should identify row 5 / id 105: %+v", ve)
	}

	if _, err := os.Stat(cfg.Output.Dir); !os.IsNotExist(err) {
		t.Error("no artifacts should be written when classification fails")
	}
}

func TestPipeline_Run_MissingInput(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestPipeline_Run_EmitError(t *testing.T) {
	cfg := testConfig(t, writeInput(t, exampleCSV))
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Output.Dir = blocker

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var ioErr *model.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestPipeline_Run_RemoteInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = fmt.Fprint(w, exampleCSV)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/whc-sites.csv")
	var log bytes.Buffer

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	p.SetLog(&log)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Source != server.URL+"/whc-sites.csv" {
		t.Errorf("unexpected source: %s", report.Source)
	}
	if got := idsOf(readRecords(t, filepath.Join(cfg.Output.Dir, "teensies.json"))); len(got) != 1 || got[0] != "103" {
		t.Errorf("unexpected teensies: %v", got)
	}
	if !strings.Contains(log.String(), "Downloaded") {
		t.Errorf("expected download progress in log: %s", log.String())
	}
}

func TestPipeline_Run_RemoteNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	p, err := NewPipeline(testConfig(t, server.URL+"/missing.csv"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for unreachable input, got %v", err)
	}
}

func TestPipeline_DuplicateHeaderWarning(t *testing.T) {
	input := "unique_number,id_no,name_en,date_inscribed,category,name_en\n1,10,A,1999,Cultural,B\n"
	cfg := testConfig(t, writeInput(t, input))

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var log bytes.Buffer
	p.SetLog(&log)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(log.String(), "name_en") {
		t.Errorf("expected duplicate column warning, got: %s", log.String())
	}
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "data.csv")
	cfg.Output.Format = "xml"
	if _, err := NewPipeline(cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestPipeline_Run_InvalidUTF8WritesNothing(t *testing.T) {
	input := "id_no,name_en,date_inscribed\n1,Caf\xe9,1980\n"
	cfg := testConfig(t, writeInput(t, input))

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())

	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for undeclared Latin-1 input, got %v", err)
	}
	if !errors.Is(err, dataset.ErrInvalidUTF8) {
		t.Errorf("expected ErrInvalidUTF8, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "data.json")); !os.IsNotExist(err) {
		t.Error("expected no output after a load failure")
	}

	// Declaring the encoding keeps the value intact end to end
	cfg.Input.Encoding = "windows-1252"
	runPipeline(t, cfg)
	records := readRecords(t, filepath.Join(cfg.Output.Dir, "eighties.json"))
	if len(records) != 1 || records[0][model.FieldNameEN] != "Café" {
		t.Errorf("unexpected eighties: %v", records)
	}
}

func TestPipeline_Run_QuoteInName(t *testing.T) {
	input := "id_no,name_en,date_inscribed\n1,The \"Old\" Town,1980\n"
	cfg := testConfig(t, writeInput(t, input))
	runPipeline(t, cfg)

	records := readRecords(t, filepath.Join(cfg.Output.Dir, "eighties.json"))
	if len(records) != 1 || records[0][model.FieldNameEN] != `The "Old" Town` {
		t.Errorf("expected verbatim quoted name, got %v", records)
	}
}

func TestPipeline_Load_RefetchesUnreadableCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = fmt.Fprint(w, exampleCSV)
	}))
	defer server.Close()

	source := server.URL + "/whc-sites.csv"
	cfg := testConfig(t, source)
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = t.TempDir()

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var log bytes.Buffer
	p.SetLog(&log)

	// A stale entry from an older export that lacks date_inscribed
	disk := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL)
	if err := disk.Set(cache.CacheKey(source), []byte("id_no,name_en\n1,Old\n"), 0); err != nil {
		t.Fatal(err)
	}

	ds, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ds.Len() != 4 {
		t.Errorf("expected 4 records from the fresh download, got %d", ds.Len())
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected exactly one download, got %d", n)
	}
	if !strings.Contains(log.String(), "fetching again") {
		t.Errorf("expected refetch notice in log: %s", log.String())
	}

	body, ok := disk.Get(cache.CacheKey(source))
	if !ok || string(body) != exampleCSV {
		t.Errorf("expected cache to hold the fresh download, got %q %v", body, ok)
	}
}

func TestPipeline_Load_LogsRedirectAndHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.csv", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.csv", http.StatusFound)
	})
	mux.HandleFunc("/new.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, exampleCSV)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p, err := NewPipeline(testConfig(t, server.URL+"/old.csv"))
	if err != nil {
		t.Fatal(err)
	}
	var log bytes.Buffer
	p.SetLog(&log)

	if _, err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(log.String(), "Redirected to "+server.URL+"/new.csv") {
		t.Errorf("expected redirect in log: %s", log.String())
	}
	if !strings.Contains(log.String(), "served text/html") {
		t.Errorf("expected content type warning in log: %s", log.String())
	}
}

func TestNewPipeline_CacheOnlyForRemoteInput(t *testing.T) {
	cfg := testConfig(t, "data.csv")
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = t.TempDir()

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.fetcher.cache != nil {
		t.Error("expected no cache for a local input")
	}

	cfg.Input.Path = "https://whc.unesco.org/en/list/csv"
	p, err = NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.fetcher.cache == nil {
		t.Error("expected cache for a remote input")
	}
}
