// ABOUTME: Stdio transport reading one JSON-RPC message per line from stdin
// ABOUTME: Responses are single lines on stdout; all logging stays on stderr

package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// maxStdioLine bounds a single request line. Large tool arguments fit well
// under this; anything bigger is a protocol violation.
const maxStdioLine = 1 << 20

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes
// one response line per request to out. Blank lines are skipped and
// notifications produce no output. The loop ends on EOF, a write failure,
// or context cancellation between messages. Stdio always serves the
// default toolset.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("MCP server ready (stdio mode)")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		response := s.engine.HandleMessage(ctx, "", line)
		if response == nil {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s\n", response); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return scanner.Err()
}
