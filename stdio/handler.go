package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/engine"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/jsonrpc"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/logctx"
	"github.com/google/uuid"
)

const defaultMaxLineBytes = 4 << 20

// ErrLineTooLong is returned by Serve when a message exceeds the line limit.
var ErrLineTooLong = errors.New("stdio: message exceeds line limit")

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the
// engine.
type Handler struct {
	eng     *engine.Engine
	r       io.Reader
	w       io.Writer
	l       *slog.Logger
	maxLine int

	mu              sync.Mutex
	sessionID       string
	protocolVersion string
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		eng:     eng,
		r:       os.Stdin,
		w:       os.Stdout,
		l:       slog.Default(),
		maxLine: defaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.l = logctx.Wrap(h.l)
	return h
}

// Session returns the session id and protocol version currently remembered
// by the handler.
func (h *Handler) Session() (id, protocolVersion string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID, h.protocolVersion
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. EOF is a clean shutdown and returns nil. It is safe to call at
// most once per Handler.
func (h *Handler) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go h.readLoop(ctx, lines, errc)

	h.l.InfoContext(ctx, "stdio.serve.start")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				h.l.InfoContext(ctx, "stdio.serve.eof")
				return nil
			}
			return err
		case line := <-lines:
			if err := h.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, lines chan<- []byte, errc chan<- error) {
	br := bufio.NewReader(h.r)
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			errc <- err
			return
		}
		buf = append(buf, chunk...)
		if len(buf) > h.maxLine {
			errc <- ErrLineTooLong
			return
		}
		if isPrefix {
			continue
		}

		line := bytes.TrimSpace(buf)
		buf = nil
		if len(line) == 0 {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleLine(ctx context.Context, line []byte) error {
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: uuid.NewString(), Method: "STDIO"})

	sid, pv := h.Session()
	reply := h.eng.Handle(ctx, &engine.Call{Body: line, SessionID: sid, ProtocolVersion: pv})

	if reply.SessionID != "" {
		h.mu.Lock()
		h.sessionID = reply.SessionID
		h.protocolVersion = reply.ProtocolVersion
		h.mu.Unlock()
	}

	if reply.Response == nil {
		return nil
	}
	return h.write(reply.Response)
}

func (h *Handler) write(res *jsonrpc.Response) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	data = append(data, '\n')
	if _, err := h.w.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
