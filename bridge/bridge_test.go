package bridge

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/whitneyland/mcpplay-core/rpc"
)

// echoServer answers every POST with the request body it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunMirrorsRequestFraming(t *testing.T) {
	srv := echoServer(t)

	first := []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)
	second := []byte(`{"jsonrpc":"2.0","method":"tools/list","id":2}`)

	var in bytes.Buffer
	w := rpc.NewWriter(&in)
	if err := w.WriteMessage(first, rpc.FormatLengthPrefixed); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMessage(second, rpc.FormatLineDelimited); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := New(&in, &out, srv.URL).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := rpc.NewReader(&out)
	body, format, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("first reply: %v", err)
	}
	if !bytes.Equal(body, first) {
		t.Errorf("first reply = %s, want echo of request", body)
	}
	if format != rpc.FormatLengthPrefixed {
		t.Errorf("first reply format = %v, want length-prefixed", format)
	}

	body, format, err = r.ReadMessage()
	if err != nil {
		t.Fatalf("second reply: %v", err)
	}
	if !bytes.Equal(body, second) {
		t.Errorf("second reply = %s, want echo of request", body)
	}
	if format != rpc.FormatLineDelimited {
		t.Errorf("second reply format = %v, want line-delimited", format)
	}

	if _, _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Errorf("trailing read = %v, want EOF", err)
	}
}

func TestRunCleanEOFReturnsNil(t *testing.T) {
	srv := echoServer(t)

	var out bytes.Buffer
	if err := New(strings.NewReader(""), &out, srv.URL).Run(); err != nil {
		t.Errorf("Run on empty stdin = %v, want nil", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want none", out.String())
	}
}

func TestRunSkipsBlankLines(t *testing.T) {
	srv := echoServer(t)

	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","method":"x","id":1}` + "\n")
	var out bytes.Buffer
	if err := New(in, &out, srv.URL).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Count(out.String(), "jsonrpc"); got != 1 {
		t.Errorf("forwarded %d messages, want 1: %q", got, out.String())
	}
}

func TestRunNotificationProducesNoOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	in := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var out bytes.Buffer
	if err := New(in, &out, srv.URL).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("notification produced output %q", out.String())
	}
}

func TestRunUnreachablePrimaryIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens on the URL anymore

	in := strings.NewReader(`{"jsonrpc":"2.0","method":"x","id":1}` + "\n")
	err := New(in, io.Discard, srv.URL).Run()
	if err == nil {
		t.Fatal("Run should fail when the primary is unreachable")
	}
}

func TestRunUpstreamHTTPErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := strings.NewReader(`{"jsonrpc":"2.0","method":"x","id":1}` + "\n")
	err := New(in, io.Discard, srv.URL).Run()
	if err == nil {
		t.Fatal("Run should fail on an upstream HTTP error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want the status surfaced", err)
	}
}

func TestRunTruncatedStdinIsFatal(t *testing.T) {
	srv := echoServer(t)

	in := strings.NewReader("Content-Length: 10\r\n\r\n{}")
	err := New(in, io.Discard, srv.URL).Run()
	if !errors.Is(err, rpc.ErrTruncated) {
		t.Errorf("Run = %v, want truncation error", err)
	}
}
