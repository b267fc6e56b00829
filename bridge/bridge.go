// Package bridge forwards framed JSON-RPC traffic between an agent's stdio
// and the primary's HTTP endpoint. It is the whole job of a proxy process:
// read one message, POST it upstream, mirror the reply in the framing the
// request used, repeat until stdin closes.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/whitneyland/mcpplay-core/logger"
	"github.com/whitneyland/mcpplay-core/rpc"
)

// Bridge shuttles messages between one stdio pair and one upstream primary.
type Bridge struct {
	in       *rpc.Reader
	out      *rpc.Writer
	flush    func() // syncs out when it is a real file
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// New wires a bridge from in/out to the primary at base ("http://host:port").
func New(in io.Reader, out io.Writer, base string) *Bridge {
	flush := func() {}
	if f, ok := out.(*os.File); ok {
		flush = func() { _ = f.Sync() }
	}
	return &Bridge{
		in:       rpc.NewReader(in),
		out:      rpc.NewWriter(out),
		flush:    flush,
		endpoint: base + "/mcp",
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logger.WithComponent("bridge"),
	}
}

// Run forwards messages until stdin closes. A clean EOF is the agent
// shutting down and returns nil. Any transport failure — truncated framing,
// an HTTP error, a stdout write failure — is fatal; the bridge never
// retries.
func (b *Bridge) Run() error {
	b.log.Info("bridge started", "endpoint", b.endpoint)
	for {
		body, format, err := b.in.ReadMessage()
		if errors.Is(err, io.EOF) {
			b.log.Info("stdin closed, bridge exiting")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}
		if len(body) == 0 {
			continue
		}

		reply, err := b.forward(body)
		if err != nil {
			return err
		}
		if len(reply) == 0 {
			// Nothing to mirror: the primary answered a notification.
			continue
		}
		if err := b.out.WriteMessage(reply, format); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		b.flush()
	}
}

// forward POSTs one message body upstream and returns the reply body, or
// nil for a 204 notification acknowledgement.
func (b *Bridge) forward(body []byte) ([]byte, error) {
	resp, err := b.client.Post(b.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to reach primary: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary response: %w", err)
	}
	b.log.Debug("forwarded message", "bytes", len(body), "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK:
		return reply, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("primary returned HTTP %d: %s", resp.StatusCode, reply)
	}
}
