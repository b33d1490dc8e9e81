package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

const (
	payloadRecordIDKey = "_docqa_id"
	maxErrorBodyBytes  = 1024
	scrollPageSize     = 256
)

var pointIDNamespaceUUID = uuid.MustParse("6f0c5d8e-52b1-4c7a-9a51-3f1c0e2d7b44")

type Config struct {
	URL        string
	Collection string
	APIKey     string
	Timeout    time.Duration
}

// Index is a ChunkIndex backed by a Qdrant collection over its REST API.
// The collection is created with cosine distance on the first write.
type Index struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	exists bool
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func New(log *logger.Logger, cfg Config) (*Index, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, opErr("init", OperationErrorValidation, "qdrant url is required", nil)
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, opErr("init", OperationErrorValidation, "qdrant collection is required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Index{
		log:     log.With("service", "QdrantIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *Index) Add(ctx context.Context, records []domain.ChunkRecord) error {
	const op = "upsert"
	if len(records) == 0 {
		return nil
	}

	dim := len(records[0].Vector)
	points := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return opErr(op, OperationErrorValidation, "record id is required", domain.ErrInvalidInput)
		}
		if len(rec.Vector) == 0 || len(rec.Vector) != dim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("record %q dimension mismatch: expected=%d got=%d", rec.ID, dim, len(rec.Vector)),
				domain.ErrInvalidInput)
		}
		points = append(points, map[string]any{
			"id":      pointID(rec.ID),
			"vector":  rec.Vector,
			"payload": recordPayload(rec),
		})
	}

	if _, err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *Index) Query(ctx context.Context, vector []float32, n int, filter domain.Filter) ([]domain.ChunkMatch, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", domain.ErrInvalidInput)
	}
	if n <= 0 {
		return nil, opErr(op, OperationErrorValidation, fmt.Sprintf("limit must be positive, got %d", n), domain.ErrInvalidInput)
	}
	qf, err := translateFilter(filter)
	if err != nil {
		s.log.Warn("qdrant query filter unsupported", "filter", filter.String(), "error", err)
		return nil, err
	}
	if ok, err := s.ensureCollection(ctx, 0); err != nil || !ok {
		return nil, err
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        n,
		"with_payload": true,
		"with_vector":  false,
	}
	if qf != nil {
		req["filter"] = qf
	}

	var raw []scoredPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.ChunkMatch, 0, len(raw))
	for _, p := range raw {
		rec, ok := payloadRecord(p.Payload)
		if !ok {
			s.log.Warn("qdrant point without record payload", "point", string(p.ID))
			continue
		}
		out = append(out, domain.ChunkMatch{Record: rec, Score: p.Score})
	}
	return out, nil
}

// Get scrolls through every point matching filter. Vectors are not returned.
func (s *Index) Get(ctx context.Context, filter domain.Filter) ([]domain.ChunkRecord, error) {
	const op = "scroll"
	qf, err := translateFilter(filter)
	if err != nil {
		return nil, err
	}
	if ok, err := s.ensureCollection(ctx, 0); err != nil || !ok {
		return nil, err
	}

	var out []domain.ChunkRecord
	var offset any
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if qf != nil {
			req["filter"] = qf
		}
		if offset != nil {
			req["offset"] = offset
		}

		var page struct {
			Points         []scoredPoint `json:"points"`
			NextPageOffset any           `json:"next_page_offset"`
		}
		if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/scroll"), req, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			if rec, ok := payloadRecord(p.Payload); ok {
				out = append(out, rec)
			}
		}
		if page.NextPageOffset == nil || len(page.Points) == 0 {
			break
		}
		offset = page.NextPageOffset
	}
	return out, nil
}

// Delete counts the matching points and then removes them by filter.
func (s *Index) Delete(ctx context.Context, filter domain.Filter) (int, error) {
	const op = "delete"
	qf, err := translateFilter(filter)
	if err != nil {
		return 0, err
	}
	if ok, err := s.ensureCollection(ctx, 0); err != nil || !ok {
		return 0, err
	}
	if qf == nil {
		qf = map[string]any{}
	}

	var counted struct {
		Count int `json:"count"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/count"),
		map[string]any{"filter": qf, "exact": true}, &counted); err != nil {
		return 0, err
	}
	if counted.Count == 0 {
		return 0, nil
	}

	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"),
		map[string]any{"filter": qf}, nil); err != nil {
		return 0, err
	}
	return counted.Count, nil
}

func (s *Index) Close() error {
	s.http.CloseIdleConnections()
	return nil
}

// ensureCollection reports whether the collection exists. With dim > 0 a
// missing collection is created instead.
func (s *Index) ensureCollection(ctx context.Context, dim int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return true, nil
	}

	err := s.doJSON(ctx, "collection_info", http.MethodGet, s.collectionPath(""), nil, nil)
	var opErrTyped *OperationError
	switch {
	case err == nil:
		s.exists = true
		return true, nil
	case errors.As(err, &opErrTyped) && opErrTyped.StatusCode == http.StatusNotFound:
		if dim <= 0 {
			return false, nil
		}
	default:
		return false, err
	}

	create := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	if err := s.doJSON(ctx, "create_collection", http.MethodPut, s.collectionPath(""), create, nil); err != nil {
		return false, err
	}
	index := map[string]any{"field_name": "hash", "field_schema": "keyword"}
	if err := s.doJSON(ctx, "create_index", http.MethodPut, s.collectionPath("/index?wait=true"), index, nil); err != nil {
		return false, err
	}
	s.log.Info("qdrant collection created", "collection", s.cfg.Collection, "vector_dim", dim, "distance", "Cosine")
	s.exists = true
	return true, nil
}

func (s *Index) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(env.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *Index) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func pointID(recordID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(recordID)).String()
}

func recordPayload(rec domain.ChunkRecord) map[string]any {
	return map[string]any{
		payloadRecordIDKey: rec.ID,
		"text":             rec.Text,
		"source":           rec.Metadata.Source,
		"chunk_id":         rec.Metadata.ChunkID,
		"hash":             rec.Metadata.Hash,
	}
}

func payloadRecord(p map[string]any) (domain.ChunkRecord, bool) {
	id, _ := p[payloadRecordIDKey].(string)
	if id == "" {
		return domain.ChunkRecord{}, false
	}
	rec := domain.ChunkRecord{ID: id}
	rec.Text, _ = p["text"].(string)
	rec.Metadata.Source, _ = p["source"].(string)
	rec.Metadata.Hash, _ = p["hash"].(string)
	switch v := p["chunk_id"].(type) {
	case float64:
		rec.Metadata.ChunkID = int(v)
	case json.Number:
		n, _ := v.Int64()
		rec.Metadata.ChunkID = int(n)
	}
	return rec, true
}
