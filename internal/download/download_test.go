// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/pm-tools/internal/httputil"
	"github.com/pdiddy/pm-tools/pkg/types"
)

func TestMain(m *testing.M) {
	RetryDelay = time.Millisecond
	os.Exit(m.Run())
}

func testClient() *httputil.Client {
	c := httputil.NewClient(types.DefaultEutils())
	c.Limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

// makeTgz builds an in-memory tar.gz from name/content pairs.
func makeTgz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractPDFFromTgz(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		pmcid string
		want  string // expected content, "" means nil result
	}{
		{
			name:  "single pdf",
			files: map[string]string{"PMC123/article.pdf": "pdf-bytes"},
			pmcid: "PMC123",
			want:  "pdf-bytes",
		},
		{
			name: "pmcid-named pdf preferred",
			files: map[string]string{
				"pkg/supplement.pdf": "supplement-data-that-is-longer",
				"pkg/pmc123.pdf":     "main",
			},
			pmcid: "PMC123",
			want:  "main",
		},
		{
			name: "largest pdf wins without pmcid match",
			files: map[string]string{
				"pkg/a.pdf": "short",
				"pkg/b.pdf": "much longer article body",
			},
			pmcid: "PMC999",
			want:  "much longer article body",
		},
		{
			name:  "non-pdf members ignored",
			files: map[string]string{"pkg/article.nxml": "<xml/>", "pkg/figure.jpg": "jpg"},
			pmcid: "PMC123",
			want:  "",
		},
		{
			name:  "empty archive",
			files: map[string]string{},
			pmcid: "PMC123",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPDFFromTgz(makeTgz(t, tt.files), tt.pmcid)
			if tt.want == "" {
				if got != nil {
					t.Errorf("got %q, want nil", got)
				}
				return
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPDFFromTgzBadGzip(t *testing.T) {
	if got := extractPDFFromTgz([]byte("not gzip"), "PMC1"); got != nil {
		t.Errorf("got %q, want nil", got)
	}
}

func TestPMCLookup(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFormat string
		wantURL    string
		wantNil    bool
	}{
		{
			name: "pdf preferred over tgz",
			body: `<OA><records><record>
				<link format="tgz" href="ftp://ftp.ncbi.nlm.nih.gov/pub/pmc/a.tar.gz"/>
				<link format="pdf" href="ftp://ftp.ncbi.nlm.nih.gov/pub/pmc/a.pdf"/>
			</record></records></OA>`,
			wantFormat: "pdf",
			wantURL:    "https://ftp.ncbi.nlm.nih.gov/pub/pmc/a.pdf",
		},
		{
			name: "tgz fallback",
			body: `<OA><records><record>
				<link format="tgz" href="https://example.org/a.tar.gz"/>
			</record></records></OA>`,
			wantFormat: "tgz",
			wantURL:    "https://example.org/a.tar.gz",
		},
		{
			name:    "error response means no source",
			body:    `<OA><error code="idDoesNotExist">identifier not found</error></OA>`,
			wantNil: true,
		},
		{
			name:    "no links",
			body:    `<OA><records><record></record></records></OA>`,
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			saved := PMCOAURL
			PMCOAURL = srv.URL
			defer func() { PMCOAURL = saved }()

			result, err := PMCLookup(context.Background(), testClient(), "PMC123")
			if err != nil {
				t.Fatalf("PMCLookup: %v", err)
			}
			if tt.wantNil {
				if result != nil {
					t.Errorf("result = %+v, want nil", result)
				}
				return
			}
			if result == nil {
				t.Fatal("result = nil")
			}
			if result.Format != tt.wantFormat || result.URL != tt.wantURL {
				t.Errorf("result = %+v, want %s %s", result, tt.wantFormat, tt.wantURL)
			}
		})
	}
}

func TestConvertPMIDs(t *testing.T) {
	var gotIDs atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs.Store(r.URL.Query().Get("ids"))
		io.WriteString(w, `{"records":[
			{"pmid":"1","pmcid":"PMC11","doi":"10.1/a"},
			{"pmid":"2","doi":"10.1/b"}
		]}`)
	}))
	defer srv.Close()
	saved := IDConvURL
	IDConvURL = srv.URL
	defer func() { IDConvURL = saved }()

	records, err := ConvertPMIDs(context.Background(), testClient(), []string{"1", "2"}, "me@example.com", 0)
	if err != nil {
		t.Fatalf("ConvertPMIDs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].PMCID != "PMC11" || records[1].DOI != "10.1/b" {
		t.Errorf("records = %+v", records)
	}
	if gotIDs.Load() != "1,2" {
		t.Errorf("ids = %q", gotIDs.Load())
	}
}

func TestUnpaywallLookup(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "open access with pdf",
			body: `{"is_oa":true,"best_oa_location":{"url_for_pdf":"https://example.org/a.pdf"}}`,
			want: "https://example.org/a.pdf",
		},
		{
			name: "closed access",
			body: `{"is_oa":false}`,
			want: "",
		},
		{
			name: "open access without location",
			body: `{"is_oa":true}`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			saved := UnpaywallURL
			UnpaywallURL = srv.URL + "/"
			defer func() { UnpaywallURL = saved }()

			got, err := UnpaywallLookup(context.Background(), testClient(), "10.1/x", "me@example.com")
			if err != nil {
				t.Fatalf("UnpaywallLookup: %v", err)
			}
			if got != tt.want {
				t.Errorf("url = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "content")
	}))
	defer srv.Close()

	data, err := fetchWithRetry(context.Background(), testClient(), srv.URL)
	if err != nil {
		t.Fatalf("fetchWithRetry: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("data = %q", data)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetchWithRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchWithRetry(context.Background(), testClient(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %v, want 503 after exhausting retries", err)
	}
}

func TestFetchWithRetryHardError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetchWithRetry(context.Background(), testClient(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 404)", got)
	}
}

func TestFindSources(t *testing.T) {
	idconv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"records":[{"pmid":"2","doi":"10.1/b"}]}`)
	}))
	defer idconv.Close()
	pmc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<OA><records><record>
			<link format="pdf" href="https://pmc.example.org/a.pdf"/>
		</record></records></OA>`)
	}))
	defer pmc.Close()
	unpaywall := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"is_oa":true,"best_oa_location":{"url_for_pdf":"https://oa.example.org/b.pdf"}}`)
	}))
	defer unpaywall.Close()

	savedConv, savedPMC, savedUP := IDConvURL, PMCOAURL, UnpaywallURL
	IDConvURL, PMCOAURL, UnpaywallURL = idconv.URL, pmc.URL, unpaywall.URL+"/"
	defer func() { IDConvURL, PMCOAURL, UnpaywallURL = savedConv, savedPMC, savedUP }()

	articles := []types.Article{
		{PMID: "1", PMCID: "PMC11"},
		{PMID: "2"},
	}
	sources, err := FindSources(context.Background(), testClient(), articles, types.DownloadConfig{}, "me@example.com", io.Discard)
	if err != nil {
		t.Fatalf("FindSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Via != "pmc" || sources[0].URL != "https://pmc.example.org/a.pdf" {
		t.Errorf("sources[0] = %+v, want PMC pdf", sources[0])
	}
	if sources[1].Via != "unpaywall" || sources[1].URL != "https://oa.example.org/b.pdf" {
		t.Errorf("sources[1] = %+v, want Unpaywall pdf", sources[1])
	}
	if sources[1].DOI != "10.1/b" {
		t.Errorf("sources[1].DOI = %q, want DOI from converter", sources[1].DOI)
	}
}

func TestFindSourcesUnpaywallOnly(t *testing.T) {
	var pmcCalled atomic.Bool
	pmc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pmcCalled.Store(true)
	}))
	defer pmc.Close()
	unpaywall := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"is_oa":false}`)
	}))
	defer unpaywall.Close()

	savedPMC, savedUP := PMCOAURL, UnpaywallURL
	PMCOAURL, UnpaywallURL = pmc.URL, unpaywall.URL+"/"
	defer func() { PMCOAURL, UnpaywallURL = savedPMC, savedUP }()

	articles := []types.Article{{PMID: "1", PMCID: "PMC11", DOI: "10.1/a"}}
	cfg := types.DownloadConfig{UnpaywallOnly: true}
	sources, err := FindSources(context.Background(), testClient(), articles, cfg, "me@example.com", io.Discard)
	if err != nil {
		t.Fatalf("FindSources: %v", err)
	}
	if pmcCalled.Load() {
		t.Error("PMC must not be queried with UnpaywallOnly set")
	}
	if sources[0].URL != "" {
		t.Errorf("sources[0].URL = %q, want empty for closed access", sources[0].URL)
	}
}

func TestDownloadPDFsRejectsNonPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>paywall</html>")
	}))
	defer srv.Close()

	outDir := t.TempDir() + "/pdfs"
	cfg := types.DownloadConfig{OutputDir: outDir}
	sources := []Source{{PMID: "1", Via: "unpaywall", URL: srv.URL, Format: "pdf"}}

	stats, err := DownloadPDFs(context.Background(), testClient(), sources, cfg, nil, io.Discard)
	if err != nil {
		t.Fatalf("DownloadPDFs: %v", err)
	}
	if stats.Failed != 1 || stats.Downloaded != 0 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
	if _, err := os.Stat(outDir + "/1.pdf"); !os.IsNotExist(err) {
		t.Error("invalid PDF must not be written to disk")
	}
}

func TestDownloadPDFsSkipsExisting(t *testing.T) {
	outDir := t.TempDir()
	if err := os.WriteFile(outDir+"/1.pdf", []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := types.DownloadConfig{OutputDir: outDir}
	sources := []Source{{PMID: "1", URL: "http://unused.invalid/a.pdf", Format: "pdf"}}

	stats, err := DownloadPDFs(context.Background(), testClient(), sources, cfg, nil, io.Discard)
	if err != nil {
		t.Fatalf("DownloadPDFs: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 skipped", stats)
	}
}

func TestDownloadPDFsNoSource(t *testing.T) {
	cfg := types.DownloadConfig{OutputDir: t.TempDir()}
	stats, err := DownloadPDFs(context.Background(), testClient(), []Source{{PMID: "9"}}, cfg, nil, io.Discard)
	if err != nil {
		t.Fatalf("DownloadPDFs: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
}
