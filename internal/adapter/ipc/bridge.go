// Package ipc serves the HTTP handler tree over a newline-delimited JSON
// channel, the desktop shell's stdin/stdout pipe.
package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/infrastructure/metrics"
)

// MaxLineBytes bounds a single request line.
const MaxLineBytes = 4 << 20

// localAddr is the RemoteAddr given to bridged requests.
const localAddr = "127.0.0.1:0"

// Request is one line read from the channel.
type Request struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   map[string]string `json:"query,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Response is one line written back. JSON bodies are embedded as they are;
// anything else (statements) is base64 encoded and tagged with its type.
type Response struct {
	ID          string          `json:"id"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Encoding    string          `json:"encoding,omitempty"`
}

// Bridge dispatches channel requests to an http.Handler.
type Bridge struct {
	handler http.Handler
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex // serializes writes
}

// NewBridge creates a bridge in front of handler. m may be nil.
func NewBridge(handler http.Handler, logger zerolog.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{handler: handler, logger: logger, metrics: m}
}

// Serve reads requests from r until EOF or ctx is done and answers each on w
// in the order they arrived. Malformed and oversized lines get a 400
// response and do not stop the loop.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)

	for {
		line, oversized, err := readLine(br)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ipc: read request: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			req  Request
			resp Response
		)
		switch line = bytes.TrimSpace(line); {
		case oversized:
			resp = errorResponse("", http.StatusBadRequest, fmt.Sprintf("request line exceeds %d bytes", MaxLineBytes))
		case len(line) == 0:
			continue
		default:
			if err := json.Unmarshal(line, &req); err != nil {
				resp = errorResponse("", http.StatusBadRequest, "malformed request: "+err.Error())
			} else {
				resp = b.Dispatch(ctx, req)
			}
		}

		if err := b.write(w, resp); err != nil {
			return fmt.Errorf("ipc: write response: %w", err)
		}
	}
}

// readLine returns the next line. A line longer than MaxLineBytes is read
// to its end and dropped, and reported as oversized.
func readLine(br *bufio.Reader) (line []byte, oversized bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !oversized {
			line = append(line, chunk...)
			if len(bytes.TrimSuffix(line, []byte("\n"))) > MaxLineBytes {
				line, oversized = nil, true
			}
		}

		switch {
		case rerr == nil:
			return line, oversized, nil
		case errors.Is(rerr, bufio.ErrBufferFull):
		case errors.Is(rerr, io.EOF) && (len(line) > 0 || oversized):
			return line, oversized, nil
		default:
			return nil, false, rerr
		}
	}
}

// Dispatch runs a single request through the handler.
func (b *Bridge) Dispatch(ctx context.Context, req Request) Response {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(req.Path, "/") {
		return b.record(method, errorResponse(req.ID, http.StatusBadRequest, "path must be absolute"))
	}

	target := req.Path
	if len(req.Query) > 0 {
		q := url.Values{}
		for k, v := range req.Query {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 && !bytes.Equal(req.Body, []byte("null")) {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return b.record(method, errorResponse(req.ID, http.StatusBadRequest, err.Error()))
	}
	httpReq.RemoteAddr = localAddr
	if body != http.NoBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	rec := newRecorder()
	b.serve(rec, httpReq)

	resp := Response{ID: req.ID, Status: rec.status}
	encodeBody(&resp, rec.header.Get("Content-Type"), rec.body.Bytes())
	return b.record(method, resp)
}

// serve calls the handler, turning a panic that escaped it into a 500.
func (b *Bridge) serve(rec *recorder, req *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error().Interface("panic", p).Str("path", req.URL.Path).Msg("ipc handler panic")
			rec.reset()
			rec.Header().Set("Content-Type", "application/json")
			rec.WriteHeader(http.StatusInternalServerError)
			_, _ = rec.Write([]byte(`{"error":"internal server error"}`))
		}
	}()
	b.handler.ServeHTTP(rec, req)
}

func (b *Bridge) record(method string, resp Response) Response {
	if b.metrics != nil {
		b.metrics.IPCRequests.WithLabelValues(method, strconv.Itoa(resp.Status)).Inc()
	}
	b.logger.Debug().
		Str("id", resp.ID).
		Str("method", method).
		Int("status", resp.Status).
		Msg("ipc request")
	return resp
}

func (b *Bridge) write(w io.Writer, resp Response) error {
	line, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	_, err = w.Write(line)
	return err
}

func encodeBody(resp *Response, contentType string, body []byte) {
	if len(body) == 0 {
		return
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" && json.Valid(body) {
		resp.Body = json.RawMessage(bytes.TrimRight(body, "\n"))
		return
	}

	encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(body))
	resp.Body = encoded
	resp.ContentType = contentType
	resp.Encoding = "base64"
}

func errorResponse(id string, status int, message string) Response {
	body, _ := json.Marshal(map[string]string{"error": message})
	return Response{ID: id, Status: status, Body: body}
}
