package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeClient struct {
	result *DetectResult
	err    error

	gotMime string
	gotLen  int
}

func (f *fakeClient) DetectItems(ctx context.Context, image []byte, mimeType string) (*DetectResult, error) {
	f.gotMime = mimeType
	f.gotLen = len(image)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStorage struct {
	keys []string
	err  error
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.test/" + key, nil
}

func uploadRequest(t *testing.T, filename, mimeType string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("multipart setup failed: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("multipart write failed: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/vision/detect-items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newVisionRouter(client Client, storage Storage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/vision/detect-items", NewHandler(client, storage).DetectItems)
	return r
}

func TestDetectItems_Success(t *testing.T) {
	client := &fakeClient{result: &DetectResult{
		Description: "A menu with two items.",
		RawResponse: `{"source":"canta.menu","sections":[]}`,
		Status:      "success",
	}}
	storage := &fakeStorage{}
	r := newVisionRouter(client, storage)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "menu.JPG", "image/jpeg", []byte("fake image bytes")))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Description string `json:"description"`
		RawResponse string `json:"raw_response"`
		Status      string `json:"status"`
		ImageURL    string `json:"image_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if resp.Status != "success" || resp.Description == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ImageURL == "" {
		t.Error("expected the archived image url")
	}

	if client.gotMime != "image/jpeg" || client.gotLen == 0 {
		t.Errorf("model saw mime=%q len=%d", client.gotMime, client.gotLen)
	}
	if len(storage.keys) != 1 {
		t.Fatalf("expected one archived object, got %d", len(storage.keys))
	}
	key := storage.keys[0]
	if !strings.HasPrefix(key, "pages/") || !strings.HasSuffix(key, ".jpg") {
		t.Errorf("unexpected archive key %q", key)
	}
}

func TestDetectItems_ModelFailureDegrades(t *testing.T) {
	client := &fakeClient{err: errors.New("model timeout")}
	r := newVisionRouter(client, &fakeStorage{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "menu.png", "image/png", []byte("bytes")))

	// A model failure is reported inside a 200 payload, never as an abort.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status      string `json:"status"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "error" {
		t.Errorf("expected error status, got %q", resp.Status)
	}
	if !strings.Contains(resp.Description, "model timeout") {
		t.Errorf("error detail lost: %q", resp.Description)
	}
}

func TestDetectItems_ArchiveFailureIsNotFatal(t *testing.T) {
	client := &fakeClient{result: &DetectResult{Description: "menu", Status: "success"}}
	r := newVisionRouter(client, &fakeStorage{err: errors.New("bucket down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "menu.png", "image/png", []byte("bytes")))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		ImageURL string `json:"image_url"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "success" {
		t.Errorf("detection must continue without the archive, got %q", resp.Status)
	}
	if resp.ImageURL != "" {
		t.Errorf("no url when archival failed, got %q", resp.ImageURL)
	}
}

func TestDetectItems_RejectsNonImage(t *testing.T) {
	r := newVisionRouter(&fakeClient{}, &fakeStorage{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "menu.pdf", "application/pdf", []byte("%PDF")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-image uploads, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vision/detect-items", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when the file part is missing, got %d", w.Code)
	}
}
