package server

import (
	"bytes"
	"encoding/json"
	"image/color"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-pdfcompose/internal/config"
	"go-pdfcompose/internal/pdf"
	"go-pdfcompose/internal/testutil"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.UploadDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.RenderYield = 0
	server := httptest.NewServer(New(cfg).RegisterRoutes())
	t.Cleanup(server.Close)
	return server
}

func createSession(t *testing.T, server *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/sessions/", "application/json", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %d", resp.StatusCode)
	}
	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["sessionId"] == "" {
		t.Fatal("Expected sessionId in response")
	}
	return result["sessionId"]
}

type upload struct {
	field, name string
	data        []byte
}

func postFiles(t *testing.T, url string, files ...upload) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		part, _ := writer.CreateFormFile(f.field, f.name)
		_, _ = part.Write(f.data)
	}
	writer.Close()

	req, _ := http.NewRequest("POST", url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to upload: %v", err)
	}
	return resp
}

// call sends a JSON request and decodes a JSON response into out when out
// is not nil. It returns the status code.
func call(t *testing.T, method, url string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, rd)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response of %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestCreateSession(t *testing.T) {
	server := setupTestServer(t)
	createSession(t, server)
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t)
	var result map[string]string
	if code := call(t, "GET", server.URL+"/api/health", nil, &result); code != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %d", code)
	}
	if result["status"] != "ok" {
		t.Errorf("status = %q", result["status"])
	}
}

func TestUnknownSession(t *testing.T) {
	server := setupTestServer(t)
	if code := call(t, "GET", server.URL+"/api/sessions/nope/pages", nil, nil); code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", code)
	}
}

func TestUploadFiles(t *testing.T) {
	server := setupTestServer(t)
	sessionID := createSession(t, server)
	url := server.URL + "/api/sessions/" + sessionID + "/files"

	t.Run("valid and invalid PDF", func(t *testing.T) {
		resp := postFiles(t, url,
			upload{"pdf", "two.pdf", testutil.PDF(testutil.Letter, testutil.Letter)},
			upload{"pdf", "notpdf.pdf", []byte("hello")},
		)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 OK, got %d", resp.StatusCode)
		}
		var result struct {
			Documents []struct{ ID string }
			Pages     []struct{ ID string }
			Errors    []struct{ Filename string }
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatal(err)
		}
		if len(result.Documents) != 1 || len(result.Pages) != 2 {
			t.Errorf("got %d documents and %d pages, want 1 and 2", len(result.Documents), len(result.Pages))
		}
		if len(result.Errors) != 1 || result.Errors[0].Filename != "notpdf.pdf" {
			t.Errorf("errors = %+v, want one for notpdf.pdf", result.Errors)
		}
	})

	t.Run("invalid PDF", func(t *testing.T) {
		resp := postFiles(t, url, upload{"pdf", "notpdf.pdf", []byte("%PDF-1.4 broken")})
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			t.Fatalf("Expected error status for invalid PDF, got %d", resp.StatusCode)
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		resp := postFiles(t, url, upload{"pdf", "doc.txt", testutil.PDF()})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestUploadSignature(t *testing.T) {
	server := setupTestServer(t)
	sessionID := createSession(t, server)
	url := server.URL + "/api/sessions/" + sessionID + "/signature"

	resp := postFiles(t, url, upload{"signature", "sig.jpg", testutil.PNG(4, 4, color.Black)})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("PNG named .jpg: expected 400, got %d", resp.StatusCode)
	}

	resp = postFiles(t, url, upload{"signature", "sig.png", testutil.PNG(4, 4, color.Black)})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %d", resp.StatusCode)
	}
}

type pageJSON struct {
	ID       string  `json:"id"`
	Rotation int     `json:"rotation"`
	Canvas   struct{ Width, Height float64 }
}

func TestComposeAndExport(t *testing.T) {
	server := setupTestServer(t)
	sessionID := createSession(t, server)
	base := server.URL + "/api/sessions/" + sessionID

	resp := postFiles(t, base+"/files",
		upload{"pdf", "a.pdf", testutil.PDF(testutil.Page{Width: 500, Height: 700})},
		upload{"pdf", "b.pdf", testutil.PDF(testutil.Letter)},
	)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200 OK, got %d", resp.StatusCode)
	}

	resp = postFiles(t, base+"/signature", upload{"signature", "sig.png", testutil.PNG(20, 10, color.NRGBA{B: 255, A: 255})})
	var sig map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&sig)
	resp.Body.Close()
	imageID, _ := sig["imageId"].(string)

	var snap struct {
		Pages []struct {
			Page pageJSON `json:"page"`
		} `json:"pages"`
	}
	if code := call(t, "GET", base+"/pages", nil, &snap); code != http.StatusOK || len(snap.Pages) != 2 {
		t.Fatalf("pages: status %d, %d pages", code, len(snap.Pages))
	}
	first := snap.Pages[0].Page.ID
	pageURL := base + "/pages/" + first

	if code := call(t, "POST", pageURL+"/overlays", map[string]any{"type": "text", "x": 10, "y": 10, "text": "x"}, nil); code != http.StatusConflict {
		t.Errorf("overlay before render: expected 409, got %d", code)
	}

	var rendered struct {
		Page     pageJSON `json:"page"`
		Viewport struct{ Width, Height float64 }
	}
	if code := call(t, "POST", pageURL+"/render", map[string]any{"width": 500}, &rendered); code != http.StatusOK {
		t.Fatalf("render: expected 200 OK, got %d", code)
	}
	if rendered.Page.Canvas.Width != 500 || rendered.Page.Canvas.Height != 700 {
		t.Errorf("canvas = %+v, want 500x700", rendered.Page.Canvas)
	}

	var text struct {
		ID string  `json:"id"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	}
	if code := call(t, "POST", pageURL+"/overlays", map[string]any{"type": "text", "x": 100, "y": 50, "text": "Jane Doe"}, &text); code != http.StatusCreated {
		t.Fatalf("add text: expected 201, got %d", code)
	}
	if code := call(t, "POST", pageURL+"/overlays", map[string]any{"type": "image", "x": 250, "y": 350, "imageId": imageID}, nil); code != http.StatusCreated {
		t.Fatalf("add image: expected 201, got %d", code)
	}
	if code := call(t, "PUT", base+"/overlays/"+text.ID+"/text", map[string]any{"text": "Jane Q. Doe"}, nil); code != http.StatusOK {
		t.Errorf("set text: expected 200, got %d", code)
	}

	if code := call(t, "POST", pageURL+"/rotate", map[string]any{"delta": 45}, nil); code != http.StatusBadRequest {
		t.Errorf("rotate 45: expected 400, got %d", code)
	}
	var rotated struct {
		Page     pageJSON `json:"page"`
		Overlays []struct {
			ID string  `json:"id"`
			X  float64 `json:"x"`
			Y  float64 `json:"y"`
		} `json:"overlays"`
	}
	if code := call(t, "POST", pageURL+"/rotate", map[string]any{"delta": 90}, &rotated); code != http.StatusOK {
		t.Fatalf("rotate: expected 200 OK, got %d", code)
	}
	if rotated.Page.Rotation != 90 || len(rotated.Overlays) != 2 {
		t.Fatalf("rotated page = %+v with %d overlays", rotated.Page, len(rotated.Overlays))
	}
	if code := call(t, "POST", pageURL+"/render", map[string]any{"width": 500}, nil); code != http.StatusOK {
		t.Fatalf("re-render: expected 200 OK, got %d", code)
	}

	preview, err := http.Get(pageURL + "/preview?width=100")
	if err != nil {
		t.Fatal(err)
	}
	preview.Body.Close()
	if preview.StatusCode != http.StatusOK || preview.Header.Get("Content-Type") != "image/png" {
		t.Errorf("preview: status %d, type %q", preview.StatusCode, preview.Header.Get("Content-Type"))
	}

	if code := call(t, "PUT", base+"/order", map[string]any{"from": 0, "to": 1}, nil); code != http.StatusOK {
		t.Errorf("order: expected 200 OK, got %d", code)
	}

	var export map[string]string
	if code := call(t, "POST", base+"/actions/export", map[string]any{"filename": "signed copy"}, &export); code != http.StatusOK {
		t.Fatalf("export: expected 200 OK, got %d", code)
	}
	if !strings.HasSuffix(export["downloadUrl"], "/files/signed_copy.pdf") {
		t.Fatalf("downloadUrl = %q", export["downloadUrl"])
	}

	dl, err := http.Get(server.URL + export["downloadUrl"])
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download: expected 200 OK, got %d", dl.StatusCode)
	}
	data, _ := io.ReadAll(dl.Body)
	n, err := pdf.PageCount(data)
	if err != nil {
		t.Fatalf("exported PDF does not parse: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d pages, want 2", n)
	}

	other, err := http.Get(base + "/files/other.pdf")
	if err != nil {
		t.Fatal(err)
	}
	other.Body.Close()
	if other.StatusCode != http.StatusForbidden {
		t.Errorf("download of another file: expected 403, got %d", other.StatusCode)
	}
}

func TestExportWithoutPages(t *testing.T) {
	server := setupTestServer(t)
	sessionID := createSession(t, server)
	if code := call(t, "POST", server.URL+"/api/sessions/"+sessionID+"/actions/export", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", code)
	}
}

func TestAddPageAndRenderAll(t *testing.T) {
	server := setupTestServer(t)
	sessionID := createSession(t, server)
	base := server.URL + "/api/sessions/" + sessionID

	resp := postFiles(t, base+"/files", upload{"pdf", "a.pdf", testutil.PDF(testutil.Page{Width: 400, Height: 400}, testutil.Letter)})
	var uploaded struct {
		Documents []struct{ ID string }
	}
	_ = json.NewDecoder(resp.Body).Decode(&uploaded)
	resp.Body.Close()
	if len(uploaded.Documents) != 1 {
		t.Fatalf("upload returned %d documents", len(uploaded.Documents))
	}
	docURL := base + "/documents/" + uploaded.Documents[0].ID

	if code := call(t, "POST", docURL+"/pages", map[string]any{"index": 0}, nil); code != http.StatusCreated {
		t.Fatalf("add page: expected 201, got %d", code)
	}
	if code := call(t, "POST", docURL+"/pages", map[string]any{"index": 2}, nil); code != http.StatusBadRequest {
		t.Errorf("add page out of range: expected 400, got %d", code)
	}

	var snap struct {
		Pages []struct {
			Page pageJSON `json:"page"`
		} `json:"pages"`
		Errors []struct{ PageID, Error string } `json:"errors"`
	}
	if code := call(t, "POST", base+"/actions/render", map[string]any{"width": 200}, &snap); code != http.StatusOK {
		t.Fatalf("render all: expected 200 OK, got %d", code)
	}
	if len(snap.Errors) != 0 {
		t.Errorf("render errors: %+v", snap.Errors)
	}
	if len(snap.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(snap.Pages))
	}
	for i, p := range snap.Pages {
		if math.Abs(p.Page.Canvas.Width-200) > 1e-9 {
			t.Errorf("page %d canvas width = %v, want 200", i, p.Page.Canvas.Width)
		}
	}
	if h := snap.Pages[0].Page.Canvas.Height; h != 200 {
		t.Errorf("square page canvas height = %v, want 200", h)
	}
}

func TestDeleteSession(t *testing.T) {
	server := setupTestServer(t)
	sessionID := createSession(t, server)
	url := server.URL + "/api/sessions/" + sessionID

	if code := call(t, "DELETE", url, nil, nil); code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", code)
	}
	if code := call(t, "GET", url+"/pages", nil, nil); code != http.StatusNotFound {
		t.Errorf("pages after delete: expected 404, got %d", code)
	}
	if code := call(t, "DELETE", url, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", code)
	}
}

func TestSwaggerLocalhostOnly(t *testing.T) {
	h := localhostOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/swagger/index.html", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("remote request: expected 403, got %d", rec.Code)
	}

	req.RemoteAddr = "127.0.0.1:4567"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("local request: expected 200, got %d", rec.Code)
	}
}
