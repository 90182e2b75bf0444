package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
)

// stdioMaxLine bounds a single JSON-RPC line on the stdio transport.
const stdioMaxLine = 1 << 20

// Stdio bridges line-delimited JSON-RPC from a reader into the handler and
// writes responses to a writer. It shares the HTTP transport's dispatch, so
// both transports expose identical semantics.
type Stdio struct {
	handler *Handler
	in      io.Reader
	out     io.Writer
	logger  *log.Logger
}

// NewStdio creates a stdio bridge. The logger must not write to out; stdout
// carries only JSON-RPC responses.
func NewStdio(h *Handler, in io.Reader, out io.Writer, logger *log.Logger) *Stdio {
	if logger == nil {
		logger = log.Default()
	}
	return &Stdio{handler: h, in: in, out: out, logger: logger}
}

// Run reads requests until EOF or context cancellation. Malformed lines
// produce a single parse error response and processing continues.
func (s *Stdio) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), stdioMaxLine)
	enc := json.NewEncoder(s.out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := enc.Encode(errorResponse(nil, CodeParseError, "invalid JSON")); err != nil {
				return err
			}
			continue
		}

		resp := s.handler.Dispatch(ctx, &req)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Printf("stdio read error: %v", err)
		return err
	}
	return nil
}
