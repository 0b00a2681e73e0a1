package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colintoh/clicky-mcp/internal/session"
)

// StdioTransport serves one client over newline-delimited JSON on a
// reader/writer pair. Calls run concurrently up to maxConcurrent; responses
// are written one frame at a time.
type StdioTransport struct {
	server        *Server
	in            io.Reader
	out           io.Writer
	maxConcurrent int
	logger        zerolog.Logger

	writeMu sync.Mutex
}

// NewStdioTransport creates a stdio transport
func NewStdioTransport(server *Server, in io.Reader, out io.Writer, maxConcurrent int, logger zerolog.Logger) *StdioTransport {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &StdioTransport{
		server:        server,
		in:            in,
		out:           out,
		maxConcurrent: maxConcurrent,
		logger:        logger.With().Str("component", "stdio").Logger(),
	}
}

// Serve reads frames until the input ends or ctx is cancelled, then waits
// for in-flight calls to finish.
func (t *StdioTransport) Serve(ctx context.Context) error {
	sess := session.NewSession(session.TransportStdio)
	defer sess.Close()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go t.readLoop(ctx, lines, readErr)

	var g errgroup.Group
	g.SetLimit(t.maxConcurrent)

	t.logger.Info().
		Str("session_id", sess.ID).
		Int("max_concurrent", t.maxConcurrent).
		Msg("Serving over stdio")

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return nil
		case err := <-readErr:
			g.Wait()
			if errors.Is(err, io.EOF) {
				t.logger.Info().Msg("Input closed")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case line := <-lines:
			g.Go(func() error {
				t.handle(ctx, sess, line)
				return nil
			})
		}
	}
}

func (t *StdioTransport) readLoop(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	r := bufio.NewReader(t.in)
	for {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

func (t *StdioTransport) handle(ctx context.Context, sess *session.Session, line []byte) {
	resp := t.server.HandleMessage(ctx, sess, line)
	if resp == nil {
		return
	}
	if err := t.write(resp); err != nil {
		t.logger.Error().Err(err).Msg("Failed to write response")
	}
}

func (t *StdioTransport) write(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.out.Write(data)
	return err
}
