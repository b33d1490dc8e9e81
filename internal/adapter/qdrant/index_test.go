package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

func TestIndexAddCreatesCollectionThenUpserts(t *testing.T) {
	var calls []string
	var upsert map[string]any
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/documents":
			return statusResponse(http.StatusNotFound, `{"status":{"error":"Not found"}}`), nil
		case r.Method == http.MethodPut && r.URL.Path == "/collections/documents":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode create body: %v", err)
			}
			vectors := body["vectors"].(map[string]any)
			if vectors["size"] != float64(2) || vectors["distance"] != "Cosine" {
				t.Fatalf("unexpected collection params: %v", vectors)
			}
			return okResponse(t, true), nil
		case r.Method == http.MethodPut && r.URL.Path == "/collections/documents/index":
			return okResponse(t, map[string]any{"status": "acknowledged"}), nil
		case r.Method == http.MethodPut && r.URL.Path == "/collections/documents/points":
			if r.URL.RawQuery != "wait=true" {
				t.Fatalf("query: want=%q got=%q", "wait=true", r.URL.RawQuery)
			}
			if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
				t.Fatalf("decode upsert: %v", err)
			}
			return okResponse(t, map[string]any{"status": "acknowledged"}), nil
		}
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		return nil, nil
	})

	err := s.Add(context.Background(), []domain.ChunkRecord{
		{ID: "abc_0", Text: "first", Vector: []float32{1, 0}, Metadata: domain.ChunkMetadata{Source: "a.pdf", ChunkID: 0, Hash: "abc"}},
		{ID: "abc_1", Text: "second", Vector: []float32{0, 1}, Metadata: domain.ChunkMetadata{Source: "a.pdf", ChunkID: 1, Hash: "abc"}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(calls) != 4 {
		t.Fatalf("calls: want=4 got=%d (%v)", len(calls), calls)
	}

	points := upsert["points"].([]any)
	first := points[0].(map[string]any)
	if first["id"] != pointID("abc_0") {
		t.Fatalf("point id: got=%v", first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload["hash"] != "abc" || payload["source"] != "a.pdf" || payload["chunk_id"] != float64(0) || payload[payloadRecordIDKey] != "abc_0" {
		t.Fatalf("payload mismatch: %v", payload)
	}

	// Second add must not re-check the collection.
	calls = nil
	if err := s.Add(context.Background(), []domain.ChunkRecord{
		{ID: "abc_2", Vector: []float32{1, 1}, Metadata: domain.ChunkMetadata{Hash: "abc", ChunkID: 2}},
	}); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("calls after collection known: want=1 got=%v", calls)
	}
}

func TestIndexAddRejectsMixedDimensions(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected, got %s %s", r.Method, r.URL.Path)
		return nil, nil
	})
	err := s.Add(context.Background(), []domain.ChunkRecord{
		{ID: "a", Vector: []float32{1, 2}},
		{ID: "b", Vector: []float32{1}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIndexQueryTranslatesHashFilter(t *testing.T) {
	var captured map[string]any
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/documents/points/search" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": pointID("abc_3"), "score": 0.9, "payload": map[string]any{
				payloadRecordIDKey: "abc_3", "text": "third", "source": "a.pdf", "hash": "abc", "chunk_id": 3,
			}},
			{"id": "stray", "score": 0.5, "payload": map[string]any{}},
		}), nil
	})
	s.exists = true

	matches, err := s.Query(context.Background(), []float32{1, 0}, 5, domain.HashIs("abc"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: want=1 got=%d", len(matches))
	}
	m := matches[0]
	if m.Record.ID != "abc_3" || m.Record.Text != "third" || m.Record.Metadata.ChunkID != 3 || m.Score != 0.9 {
		t.Fatalf("unexpected match: %+v", m)
	}

	if captured["limit"] != float64(5) {
		t.Fatalf("limit: got=%v", captured["limit"])
	}
	filter := captured["filter"].(map[string]any)
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	if cond["key"] != "hash" || cond["match"].(map[string]any)["value"] != "abc" {
		t.Fatalf("filter condition: got=%v", cond)
	}
}

func TestIndexQueryOnMissingCollectionIsEmpty(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodGet {
			t.Fatalf("only the collection probe is expected, got %s %s", r.Method, r.URL.Path)
		}
		return statusResponse(http.StatusNotFound, `{"status":{"error":"Not found"}}`), nil
	})

	matches, err := s.Query(context.Background(), []float32{1}, 3, domain.HashIs("x"))
	if err != nil || len(matches) != 0 {
		t.Fatalf("want empty result, got %v, %v", matches, err)
	}
}

func TestIndexGetScrollsAllPages(t *testing.T) {
	page := 0
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/documents/points/scroll" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		page++
		if page == 1 {
			if _, ok := body["offset"]; ok {
				t.Fatalf("first page must not send an offset")
			}
			return okResponse(t, map[string]any{
				"points":           []map[string]any{{"id": "p1", "payload": map[string]any{payloadRecordIDKey: "h_0", "hash": "h", "source": "s", "chunk_id": 0}}},
				"next_page_offset": "p2",
			}), nil
		}
		if body["offset"] != "p2" {
			t.Fatalf("offset: want=p2 got=%v", body["offset"])
		}
		return okResponse(t, map[string]any{
			"points":           []map[string]any{{"id": "p2", "payload": map[string]any{payloadRecordIDKey: "g_0", "hash": "g", "source": "t", "chunk_id": 0}}},
			"next_page_offset": nil,
		}), nil
	})
	s.exists = true

	recs, err := s.Get(context.Background(), domain.Filter{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 2 || recs[0].Metadata.Source != "s" || recs[1].Metadata.Hash != "g" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestIndexDeleteCountsThenDeletes(t *testing.T) {
	var deleted bool
	count := 3
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/collections/documents/points/count":
			return okResponse(t, map[string]any{"count": count}), nil
		case "/collections/documents/points/delete":
			deleted = true
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if _, ok := body["filter"]; !ok {
				t.Fatalf("delete must be by filter: %v", body)
			}
			return okResponse(t, map[string]any{"status": "completed"}), nil
		}
		t.Fatalf("unexpected path %s", r.URL.Path)
		return nil, nil
	})
	s.exists = true

	n, err := s.Delete(context.Background(), domain.HashIs("abc"))
	if err != nil || n != 3 || !deleted {
		t.Fatalf("want 3 deleted, got n=%d err=%v deleted=%v", n, err, deleted)
	}

	deleted, count = false, 0
	n, err = s.Delete(context.Background(), domain.HashIs("none"))
	if err != nil || n != 0 || deleted {
		t.Fatalf("zero matches must be a no-op, got n=%d err=%v deleted=%v", n, err, deleted)
	}
}

func TestIndexSurfacesHTTPErrors(t *testing.T) {
	s := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return statusResponse(http.StatusInternalServerError, `{"status":{"error":"boom"}}`), nil
	})
	s.exists = true

	_, err := s.Query(context.Background(), []float32{1}, 1, domain.Filter{})
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) {
		t.Fatalf("expected OperationError, got=%T %v", err, err)
	}
	if opErrTyped.Code != OperationErrorQueryFailed || opErrTyped.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", opErrTyped)
	}
}

func TestTranslateFilter(t *testing.T) {
	f, err := translateFilter(domain.Filter{Field: domain.FieldChunkID, Op: domain.OpNe, Value: "4"})
	if err != nil {
		t.Fatal(err)
	}
	cond := f["must_not"].([]any)[0].(map[string]any)
	if cond["match"].(map[string]any)["value"] != 4 {
		t.Fatalf("chunk_id must be matched as an integer, got %v", cond)
	}

	if f, err := translateFilter(domain.Filter{}); err != nil || f != nil {
		t.Fatalf("zero filter: want nil, got %v %v", f, err)
	}

	_, err = translateFilter(domain.Filter{Field: "author", Op: domain.OpEq, Value: "x"})
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("expected unsupported_filter, got %v", err)
	}
}

func TestClassifyHTTPCallErrorTimeout(t *testing.T) {
	err := classifyHTTPCallError("query", "timeout", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.Code != OperationErrorTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
}

func newTestIndex(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *Index {
	t.Helper()
	s, err := New(logger.NewNop(), Config{URL: "http://qdrant.local/", Collection: "documents"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.http = &http.Client{Transport: roundTripFunc(roundTrip)}
	return s
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	payload := map[string]any{
		"result": result,
		"status": "ok",
		"time":   0.001,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return statusResponse(http.StatusOK, string(raw))
}

func statusResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
