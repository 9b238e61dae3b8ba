package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/errs"
	"docpipe/internal/event"
	"docpipe/internal/metrics"
	"docpipe/internal/stages"
)

type handlerFunc func(ctx context.Context, env *event.Envelope) error

func (f handlerFunc) Handle(ctx context.Context, env *event.Envelope) error { return f(ctx, env) }

// recording parses every envelope it receives and returns err.
type recording struct {
	err error
	got []*event.Message
}

func (h *recording) Handle(_ context.Context, env *event.Envelope) error {
	msg, err := event.Parse(env)
	if err != nil {
		return err
	}
	h.got = append(h.got, msg)
	return h.err
}

func newTestServer(handlers map[string]stages.Handler) (*Server, *metrics.StageMetrics) {
	reg := prometheus.NewRegistry()
	m := metrics.NewStageMetrics(reg)
	return New(handlers, m, reg), m
}

func post(s *Server, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) errs.Record {
	t.Helper()
	var r errs.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

func TestPubSubPush(t *testing.T) {
	h := &recording{}
	s, m := newTestServer(map[string]stages.Handler{stages.StagePreparation: h})

	body := `{"message":{"data":"eyJmaWxlSWQiOiIxMjMiLCJmaWxlTmFtZSI6Imludm9pY2UucGRmIn0=","messageId":"1"},"subscription":"projects/demo/subscriptions/preparation"}`
	rec := post(s, "/preparation", body, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, h.got, 1)
	assert.Equal(t, "invoice.pdf", h.got[0].String("fileName"))
	assert.Equal(t, "projects/demo/subscriptions/preparation", h.got[0].Attributes[event.SourceAttribute])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(stages.StagePreparation, metrics.OutcomeSuccess)))
}

func TestCloudEvent(t *testing.T) {
	h := &recording{}
	s, _ := newTestServer(map[string]stages.Handler{stages.StageExtraction: h})

	rec := post(s, "/extraction", `{"bucket":"raw","name":"abc.pdf"}`, map[string]string{
		"ce-source": "//storage.googleapis.com/projects/_/buckets/raw",
		"ce-type":   "google.cloud.storage.object.v1.finalized",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, h.got, 1)
	assert.Equal(t, "abc.pdf", h.got[0].String("name"))
	assert.Equal(t, "//storage.googleapis.com/projects/_/buckets/raw", h.got[0].Attributes[event.SourceAttribute])
}

func TestCloudEventWrappingPubSubMessage(t *testing.T) {
	h := &recording{}
	s, _ := newTestServer(map[string]stages.Handler{stages.StagePreparation: h})

	body := `{"message":{"data":"eyJmaWxlSWQiOiIxMjMiLCJmaWxlTmFtZSI6Imludm9pY2UucGRmIn0=","messageId":"1"},"subscription":"projects/demo/subscriptions/eventarc-preparation"}`
	rec := post(s, "/preparation", body, map[string]string{
		"ce-source": "//pubsub.googleapis.com/projects/demo/topics/preparation",
		"ce-type":   "google.cloud.pubsub.topic.v1.messagePublished",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, h.got, 1)
	assert.Equal(t, "123", h.got[0].String("fileId"))
	assert.Equal(t, "invoice.pdf", h.got[0].String("fileName"))
	assert.Equal(t, "//pubsub.googleapis.com/projects/demo/topics/preparation", h.got[0].Attributes[event.SourceAttribute])
}

func TestRawBody(t *testing.T) {
	h := &recording{}
	s, _ := newTestServer(map[string]stages.Handler{stages.StageDiscovery: h})

	rec := post(s, "/discovery", `{"folderId":"inbox"}`, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, h.got, 1)
	assert.Nil(t, h.got[0].Attributes)

	rec = post(s, "/discovery", `{"folderId":"inbox"}`, map[string]string{"X-Source": "scheduler"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "scheduler", h.got[1].Attributes[event.SourceAttribute])
}

func TestPermanentFailureIsAcknowledged(t *testing.T) {
	s, m := newTestServer(map[string]stages.Handler{stages.StagePreparation: &recording{}})

	rec := post(s, "/preparation", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, errs.Record{Error: "missing data", Context: stages.StagePreparation, Kind: errs.KindValidation}, decodeRecord(t, rec))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(stages.StagePreparation, metrics.OutcomePermanent)))

	rec = post(s, "/preparation", "not json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, errs.KindParsing, decodeRecord(t, rec).Kind)
}

func TestTransientFailureIsRedelivered(t *testing.T) {
	h := &recording{err: errors.New("upstream unavailable")}
	s, m := newTestServer(map[string]stages.Handler{stages.StageExtraction: h})

	rec := post(s, "/extraction", `{"bucket":"raw","name":"x"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	r := decodeRecord(t, rec)
	assert.Equal(t, "upstream unavailable", r.Error)
	assert.Equal(t, errs.KindGeneric, r.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(stages.StageExtraction, metrics.OutcomeError)))
}

func TestPanicIsRecovered(t *testing.T) {
	h := handlerFunc(func(context.Context, *event.Envelope) error { panic(42) })
	s, _ := newTestServer(map[string]stages.Handler{stages.StageClassification: h})

	rec := post(s, "/classification", `{"documentId":"abc"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errs.Record{Error: errs.UnknownMessage, Context: stages.StageClassification, Kind: errs.KindUnknown}, decodeRecord(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(map[string]stages.Handler{stages.StageDiscovery: &recording{}})
	post(s, "/discovery", `{}`, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docpipe_stage_invocations_total{outcome="success",stage="discovery"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(map[string]stages.Handler{})
	assert.Equal(t, http.StatusNotFound, post(s, "/nope", "{}", nil).Code)
}
