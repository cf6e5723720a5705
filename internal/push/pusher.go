// Package push forwards newly appended audit rows to a remote collector.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const fetchLimit = 1000

// Source is the audit store plus the progress table the cursor lives in.
// Audit rows themselves are never modified.
type Source interface {
	FetchResultsAfter(ctx context.Context, afterSeq int64, limit int) ([]bench.ResultRow, error)
	GetProgress(ctx context.Context, source string) (bench.Progress, error)
	SetProgress(ctx context.Context, p bench.Progress) error
}

type Result struct {
	BatchesSent int
	ResultsSent int
}

type Pusher struct {
	source          Source
	endpoint        string
	httpClient      *http.Client
	maxPayloadBytes int
	maxRetries      int
	baseBackoff     time.Duration
	random          *rand.Rand
}

type item struct {
	Type    bench.Type      `json:"type"`
	AuditID string          `json:"audit_id"`
	Data    json.RawMessage `json:"data"`
}

type batch struct {
	lastSeq int64
	count   int
	body    []byte
}

func New(source Source, endpoint string, maxPayloadBytes int) *Pusher {
	return &Pusher{
		source:          source,
		endpoint:        endpoint,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		maxPayloadBytes: maxPayloadBytes,
		maxRetries:      5,
		baseBackoff:     500 * time.Millisecond,
		random:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Pusher) SetTestOptions(client *http.Client, retries int, backoff time.Duration) {
	if client != nil {
		p.httpClient = client
	}
	p.maxRetries = retries
	p.baseBackoff = backoff
}

// CursorKey is the progress source holding the last pushed sequence number.
func (p *Pusher) CursorKey() string {
	return "push:" + p.endpoint
}

// Cursor returns the last sequence number acknowledged by the endpoint.
func (p *Pusher) Cursor(ctx context.Context) (int64, error) {
	prog, err := p.source.GetProgress(ctx, p.CursorKey())
	if errors.Is(err, bench.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read push cursor: %w", err)
	}
	seq, err := strconv.ParseInt(prog.Marker, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse push cursor %q: %w", prog.Marker, err)
	}
	return seq, nil
}

// PushOnce sends every row after the cursor. The cursor advances after each
// acknowledged batch, so a failure resends only unacknowledged rows.
func (p *Pusher) PushOnce(ctx context.Context) (Result, error) {
	if p.endpoint == "" {
		return Result{}, errors.New("push endpoint not configured")
	}

	cursor, err := p.Cursor(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	for {
		rows, err := p.source.FetchResultsAfter(ctx, cursor, fetchLimit)
		if err != nil {
			return res, fmt.Errorf("fetch results after %d: %w", cursor, err)
		}
		if len(rows) == 0 {
			return res, nil
		}

		batches, err := p.buildBatches(rows)
		if err != nil {
			return res, err
		}
		for _, b := range batches {
			if err := p.sendWithRetry(ctx, b.body); err != nil {
				return res, err
			}
			if err := p.source.SetProgress(ctx, bench.Progress{
				Source:    p.CursorKey(),
				Marker:    strconv.FormatInt(b.lastSeq, 10),
				UpdatedAt: time.Now().UTC(),
			}); err != nil {
				return res, fmt.Errorf("advance push cursor: %w", err)
			}
			cursor = b.lastSeq
			res.BatchesSent++
			res.ResultsSent += b.count
		}
		if len(rows) < fetchLimit {
			return res, nil
		}
	}
}

func (p *Pusher) buildBatches(rows []bench.ResultRow) ([]batch, error) {
	const baseEnvelope = len(`{"results":[]}`)

	out := make([]batch, 0)
	curItems := make([]item, 0)
	var curLast int64
	curSize := baseEnvelope

	flush := func() error {
		if len(curItems) == 0 {
			return nil
		}
		body, err := json.Marshal(struct {
			Results []item `json:"results"`
		}{Results: curItems})
		if err != nil {
			return err
		}
		out = append(out, batch{lastSeq: curLast, count: len(curItems), body: body})
		curItems = curItems[:0]
		curSize = baseEnvelope
		return nil
	}

	for _, row := range rows {
		it := item{Type: row.Type, AuditID: row.AuditID, Data: row.Data}
		itBytes, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("encode result %s: %w", row.AuditID, err)
		}
		additional := len(itBytes)
		if len(curItems) > 0 {
			additional++
		}

		if len(curItems) > 0 && curSize+additional > p.maxPayloadBytes {
			if err := flush(); err != nil {
				return nil, err
			}
			additional = len(itBytes)
		}

		curItems = append(curItems, it)
		curLast = row.Seq
		curSize += additional

		// An oversized row still goes out, alone.
		if len(curItems) == 1 && curSize > p.maxPayloadBytes {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pusher) sendWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("push status %d", resp.StatusCode)
		}
		lastErr = err

		maxSleep := p.baseBackoff * time.Duration(1<<attempt)
		if maxSleep > 30*time.Second {
			maxSleep = 30 * time.Second
		}
		sleep := time.Duration(p.random.Int63n(int64(maxSleep) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("push failed after retries: %w", lastErr)
}
