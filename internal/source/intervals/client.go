package intervals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fitstream/activity_downloader/internal/job"
	"github.com/fitstream/activity_downloader/internal/transfer"
)

const (
	// basicAuthUser is the fixed user name the API expects alongside an
	// API key.
	basicAuthUser = "API_KEY"

	defaultChunkSize = 256 * 1024
	maxBodySnippet   = 256

	opOpenStream = "open_stream"
	opReadChunk  = "read_chunk"
)

// Client downloads activity files from the intervals.icu REST API.
type Client struct {
	baseURL   string
	apiKey    string
	chunkSize int
	hc        *http.Client
}

// NewClient creates an API client. headerTimeout bounds the wait for
// response headers only; the body of a large download may legitimately
// stream for much longer.
func NewClient(baseURL, apiKey string, chunkSize int, headerTimeout time.Duration) *Client {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		chunkSize: chunkSize,
		hc: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
	}
}

// Open starts streaming the activity file identified by ref.
func (c *Client) Open(ctx context.Context, ref job.Source) (transfer.Stream, error) {
	s := &stream{
		client: c,
		url:    c.fileURL(ref),
	}

	if err := s.connect(ctx, opOpenStream); err != nil {
		return nil, err
	}

	return s, nil
}

// fileURL maps a source reference to its API endpoint. The API exposes
// per-format endpoints rather than a format query parameter.
func (c *Client) fileURL(ref job.Source) string {
	var suffix string

	switch strings.ToLower(ref.Format) {
	case "fit":
		suffix = "fit-file"
	case "gpx":
		suffix = "gpx-file"
	default:
		suffix = "file"
	}

	return fmt.Sprintf("%s/api/v1/activity/%s/%s", c.baseURL, ref.ActivityID, suffix)
}

// stream reads the response body in fixed-size chunks. After a broken
// read it reconnects lazily on the next call, resuming from the current
// offset with a Range request so already-delivered bytes are never
// replayed.
type stream struct {
	client *Client
	url    string

	body     io.ReadCloser
	buf      []byte
	offset   int64
	total    int64
	hasTotal bool
	done     bool
}

func (s *stream) TotalBytes() (int64, bool) {
	return s.total, s.hasTotal
}

func (s *stream) connect(ctx context.Context, op string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return &transfer.PermanentError{Op: op, Reason: "invalid request", Err: err}
	}

	req.SetBasicAuth(basicAuthUser, s.client.apiKey)

	if s.offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", s.offset))
	}

	resp, err := s.client.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return &transfer.TransientError{Op: op, Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		defer resp.Body.Close()

		return classifyStatus(op, resp)
	}

	body := resp.Body

	// A server that ignores the Range header restarts from byte zero;
	// skip what was already delivered.
	if s.offset > 0 && resp.StatusCode == http.StatusOK {
		if _, err := io.CopyN(io.Discard, body, s.offset); err != nil {
			body.Close()

			return &transfer.TransientError{Op: op, Err: err}
		}
	}

	if !s.hasTotal && s.offset == 0 && resp.ContentLength >= 0 {
		s.total = resp.ContentLength
		s.hasTotal = true
	}

	s.body = body

	return nil
}

func (s *stream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	if s.body == nil {
		if err := s.connect(ctx, opReadChunk); err != nil {
			return nil, err
		}
	}

	if s.buf == nil {
		s.buf = make([]byte, s.client.chunkSize)
	}

	n, err := io.ReadFull(s.body, s.buf)
	if n > 0 {
		s.offset += int64(n)
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])

		switch {
		case err == nil:
			return chunk, nil
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			s.done = true
			s.Close()

			return chunk, nil
		default:
			// The connection broke mid-chunk. The bytes read so far are
			// valid; the next call reconnects from the new offset.
			s.body.Close()
			s.body = nil

			return chunk, nil
		}
	}

	if errors.Is(err, io.EOF) {
		s.done = true
		s.Close()

		return nil, io.EOF
	}

	s.body.Close()
	s.body = nil

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return nil, &transfer.TransientError{Op: opReadChunk, Err: err}
}

func (s *stream) Close() error {
	if s.body == nil {
		return nil
	}

	err := s.body.Close()
	s.body = nil

	return err
}

func classifyStatus(op string, resp *http.Response) error {
	code := resp.StatusCode
	snippet := bodySnippet(resp.Body)

	switch {
	case code == http.StatusNotFound:
		return &transfer.PermanentError{Op: op, StatusCode: code, Reason: "activity file not found"}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &transfer.PermanentError{Op: op, StatusCode: code, Reason: "authorization rejected"}
	case code == http.StatusUnprocessableEntity:
		return &transfer.PermanentError{Op: op, StatusCode: code, Reason: "invalid request: " + snippet}
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return &transfer.TransientError{Op: op, StatusCode: code, Err: errors.New(snippet)}
	default:
		return &transfer.PermanentError{Op: op, StatusCode: code, Reason: snippet}
	}
}

func bodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxBodySnippet))
	if err != nil || len(b) == 0 {
		return "no response body"
	}

	return string(b)
}
