package ingest_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyboard-server/internal/ingest"
	"storyboard-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ocrServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			content, _ := io.ReadAll(file)
			assert.Equal(t, "scan.pdf", header.Filename)
			assert.Equal(t, "%PDF", string(content))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPOCRClientStreamsProgress(t *testing.T) {
	srv := ocrServer(t, http.StatusOK,
		`{"type":"progress","stage":"upload","elapsed_ms":120,"percent":10}`+"\n"+
			"\n"+
			`{"type":"heartbeat"}`+"\n"+
			`{"type":"progress","stage":"ocr","elapsed_ms":2500,"percent":80}`+"\n"+
			`{"type":"result","text":"INT. LAB - NIGHT"}`+"\n")

	var events []ingest.Progress
	client := ingest.NewHTTPOCRClient(srv.URL, 5*time.Second, zap.NewNop())
	text, err := client.Extract(context.Background(), "scan.pdf", []byte("%PDF"), func(p ingest.Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "INT. LAB - NIGHT", text)
	require.Len(t, events, 2)
	assert.Equal(t, "upload", events[0].Stage)
	assert.Equal(t, 120*time.Millisecond, events[0].Elapsed)
	assert.Equal(t, "ocr", events[1].Stage)
	assert.InDelta(t, 80, events[1].Percent, 0.001)
}

func TestHTTPOCRClientErrorEventIsVerbatim(t *testing.T) {
	srv := ocrServer(t, http.StatusOK,
		`{"type":"progress","stage":"ocr","percent":30}`+"\n"+
			`{"type":"error","message":"Page 3 could not be decoded"}`+"\n")

	client := ingest.NewHTTPOCRClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.Extract(context.Background(), "scan.pdf", []byte("%PDF"), nil)
	require.Error(t, err)
	assert.Equal(t, "Page 3 could not be decoded", err.Error())
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestHTTPOCRClientNon2xx(t *testing.T) {
	srv := ocrServer(t, http.StatusUnprocessableEntity, `{"detail":"encrypted PDF"}`)

	client := ingest.NewHTTPOCRClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.Extract(context.Background(), "scan.pdf", []byte("%PDF"), nil)
	var ocrErr *ingest.OCRError
	require.ErrorAs(t, err, &ocrErr)
	assert.Equal(t, http.StatusUnprocessableEntity, ocrErr.StatusCode)
	assert.Equal(t, "encrypted PDF", err.Error())
}

func TestHTTPOCRClientStreamWithoutResult(t *testing.T) {
	srv := ocrServer(t, http.StatusOK, `{"type":"progress","stage":"ocr","percent":99}`+"\n")

	client := ingest.NewHTTPOCRClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.Extract(context.Background(), "scan.pdf", []byte("%PDF"), nil)
	require.Error(t, err)
	assert.Equal(t, "OCR stream ended without a result", err.Error())
}
