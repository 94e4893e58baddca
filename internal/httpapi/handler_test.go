package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"frameworks/truthcheck/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(w *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	return c
}

func TestHandleCheck_MissingPayloadIsUnprocessable(t *testing.T) {
	w := httptest.NewRecorder()
	c := newTestContext(w)

	body, _ := json.Marshal(TruthCheckRequest{InputType: "text"})
	c.Request = httptest.NewRequest(http.MethodPost, "/truth/check", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{Logger: logging.NewLogger()}
	h.HandleCheck(c)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d; body: %s", w.Code, w.Body.String())
	}
}

func TestHandleCheck_InvalidInputTypeIsUnprocessable(t *testing.T) {
	w := httptest.NewRecorder()
	c := newTestContext(w)

	body, _ := json.Marshal(TruthCheckRequest{InputType: "video", InputPayload: "x"})
	c.Request = httptest.NewRequest(http.MethodPost, "/truth/check", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{Logger: logging.NewLogger()}
	h.HandleCheck(c)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d; body: %s", w.Code, w.Body.String())
	}
}

func TestHandleCheck_NilPipelineReturnsServerError(t *testing.T) {
	w := httptest.NewRecorder()
	c := newTestContext(w)

	body, _ := json.Marshal(TruthCheckRequest{InputType: "text", InputPayload: "the sky is blue"})
	c.Request = httptest.NewRequest(http.MethodPost, "/truth/check", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{Logger: logging.NewLogger()}
	h.HandleCheck(c)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a configured pipeline, got %d", w.Code)
	}
}

func TestHandleWikiSearch_MissingQuestionIsBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	c := newTestContext(w)

	body, _ := json.Marshal(WikiSearchRequest{})
	c.Request = httptest.NewRequest(http.MethodPost, "/api/wiki/search", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{Logger: logging.NewLogger()}
	h.HandleWikiSearch(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d; body: %s", w.Code, w.Body.String())
	}
}

func TestHandleWikiSearch_NilStoreIsServerError(t *testing.T) {
	w := httptest.NewRecorder()
	c := newTestContext(w)

	body, _ := json.Marshal(WikiSearchRequest{Question: "who wrote this"})
	c.Request = httptest.NewRequest(http.MethodPost, "/api/wiki/search", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &Handler{Logger: logging.NewLogger()}
	h.HandleWikiSearch(c)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a configured retrieval store, got %d", w.Code)
	}
}

func TestJSONMarshalLineAppendsNewline(t *testing.T) {
	line, err := jsonMarshalLine(streamEnvelope{Event: "heartbeat"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Fatal("expected trailing newline")
	}
}
