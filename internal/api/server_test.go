package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"netlens/internal/aggregator"
	"netlens/internal/dispatch"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAsker struct {
	questions []string
	answer    dispatch.Answer
	err       error
}

func (f *fakeAsker) Ask(_ context.Context, question string) (dispatch.Answer, error) {
	f.questions = append(f.questions, question)
	return f.answer, f.err
}

type fakeStats aggregator.Stats

func (f fakeStats) Stats() aggregator.Stats { return aggregator.Stats(f) }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(":0", &fakeAsker{}, fakeStats{Policy: "interactive", Capacity: 20, Pending: 3}, time.Second, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status     string           `json:"status"`
		Aggregator aggregator.Stats `json:"aggregator"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, int64(3), body.Aggregator.Pending)
	assert.Equal(t, 20, body.Aggregator.Capacity)
}

func TestQuery_Answer(t *testing.T) {
	asker := &fakeAsker{answer: dispatch.Answer{BatchID: "b1", Question: "anything odd?", EventCount: 4, Text: "No."}}
	s := NewServer(":0", asker, fakeStats{}, time.Second, nil)

	rec := post(t, s.Handler(), `{"question":"  anything odd?  "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"anything odd?"}, asker.questions)
	assert.JSONEq(t, `{"batch_id":"b1","question":"anything odd?","event_count":4,"answer":"No.","empty":false}`, rec.Body.String())
}

func TestQuery_BadRequests(t *testing.T) {
	asker := &fakeAsker{}
	s := NewServer(":0", asker, fakeStats{}, time.Second, nil)

	for _, body := range []string{`not json`, `{"question":"   "}`, `{}`} {
		rec := post(t, s.Handler(), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, asker.questions)
}

func TestQuery_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("query events: %w", aggregator.ErrStopped), http.StatusServiceUnavailable},
		{fmt.Errorf("analyse batch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("backend returned 500: boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		s := NewServer(":0", &fakeAsker{err: tt.err}, fakeStats{}, time.Second, nil)
		rec := post(t, s.Handler(), `{"question":"q"}`)
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
		assert.Contains(t, rec.Body.String(), tt.err.Error())
	}
}

func TestRun_StopsWithContext(t *testing.T) {
	s := NewServer("127.0.0.1:0", &fakeAsker{}, fakeStats{}, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
