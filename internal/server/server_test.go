package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalogger-plots/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleCSV() string {
	var b strings.Builder
	b.WriteString("Date;Heure;Temp_1;Tension_A;Commentaire\n")
	start := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	for s := 0; s < 60; s++ {
		ts := start.Add(time.Duration(s) * time.Second)
		for k := 0; k < 10; k++ {
			fmt.Fprintf(&b, "%s;%s;21,5;%d;x\n", ts.Format("02/01/2006"), ts.Format("15:04:05"), 230+k)
		}
	}
	return b.String()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Development = true
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return s
}

func uploadRequest(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, name string, content []byte) datasetResponse {
	t.Helper()
	rec := do(s, uploadRequest(t, name, content))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp datasetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestIndexAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<canvas")

	rec = do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestUploadDescribesDataset(t *testing.T) {
	s := newTestServer(t)
	resp := upload(t, s, "run.csv", []byte(sampleCSV()))

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "run.csv", resp.Name)
	assert.Equal(t, 600, resp.Records)
	assert.Equal(t, []channelInfo{
		{Name: "Temp_1", Category: "temperature"},
		{Name: "Tension_A", Category: "voltage"},
	}, resp.Channels)
	assert.Equal(t, []string{"Commentaire"}, resp.Excluded)
	assert.Equal(t, 3, resp.Window)
	assert.Equal(t, 1, s.Store().Len())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+resp.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleCSV()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	resp := upload(t, newTestServer(t), "run.csv.gz", buf.Bytes())
	assert.Equal(t, 600, resp.Records)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, uploadRequest(t, "empty.csv", []byte("Date;Heure;Temp\nnope;nope;1\n")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(s, uploadRequest(t, "image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/datasets", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxUploadMB = 1
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		size int
	}{
		{"over the declared limit", 3 << 19},
		{"over the body cap", 3 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := bytes.Repeat([]byte("a"), tt.size)
			rec := do(s, uploadRequest(t, "big.csv", content))
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, s.Store().Len())
}

func TestSeries(t *testing.T) {
	s := newTestServer(t)
	ds := upload(t, s, "run.csv", []byte(sampleCSV()))

	get := func(query string) (*httptest.ResponseRecorder, seriesResponse) {
		rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+ds.ID+"/series?"+query, nil))
		var resp seriesResponse
		if rec.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		}
		return rec, resp
	}

	rec, resp := get("channel=Tension_A&smoothing=0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "voltage", resp.Category)
	assert.False(t, resp.Smoothed)
	assert.Len(t, resp.Points, 60)
	assert.InDelta(t, 234.5, resp.Points[0].V, 1e-9)
	assert.Equal(t, 30.0, resp.Ticks.IntervalSeconds)
	assert.Equal(t, "HH:MM:SS", resp.Ticks.Pattern)
	assert.Equal(t, "18/10/2026", resp.Date)

	rec, resp = get("channel=Tension_A")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Smoothed)
	assert.Len(t, resp.Points, 58)

	rec, resp = get("channel=Temp_1&start=2026-10-18T10:00:10&end=2026-10-18T10:00:19")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Points, 100)

	rec, resp = get("channel=Temp_1&start=2026-10-19")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Points)

	rec, _ = get("channel=Tension_A&smoothing=11")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get("channel=Tension_A&start=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get("channel=Commentaire")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/unknown/series?channel=Temp_1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReport(t *testing.T) {
	s := newTestServer(t)
	ds := upload(t, s, "run.csv", []byte(sampleCSV()))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+ds.ID+"/report.pdf?smoothing=5", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "run_plots.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/datasets/"+ds.ID+"/report.pdf?start=2026-10-19", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteAndMetrics(t *testing.T) {
	s := newTestServer(t)
	ds := upload(t, s, "run.csv", []byte(sampleCSV()))

	rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/datasets/"+ds.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.Store().Len())

	rec = do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "datalogger_uploads_total")
	assert.Contains(t, rec.Body.String(), "datalogger_http_requests_total")
}
