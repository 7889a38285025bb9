package serialmux

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestAttachAdminRoutes_TailSSE_StreamsDeviceLines exercises the /debug/tail
// happy path: connect, see a device line stream through, disconnect. The
// tail stream is how an operator watches raw sensor output without attaching
// a terminal to the port.
func TestAttachAdminRoutes_TailSSE_StreamsDeviceLines(t *testing.T) {
	port := NewTestSerialPort("")
	mux := NewSerialMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	// httptest.Server gives real HTTP with client-side context control.
	ts := httptest.NewServer(httpMux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/debug/tail", nil)
	req.RemoteAddr = "127.0.0.1:12345"

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected text/event-stream, got %s", ct)
	}

	// Read the initial ping comment
	scanner := bufio.NewScanner(resp.Body)
	if scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ": ping") {
			t.Errorf("expected initial ping, got %q", line)
		}
	}

	// Fan a reading line out to subscribers, as Monitor would
	deviceLine := `{"temperature_sht": 21.9, "humidity": 47.0}`
	mux.subscriberMu.Lock()
	for _, ch := range mux.subscribers {
		select {
		case ch <- deviceLine:
		default:
		}
	}
	mux.subscriberMu.Unlock()

	// Read the SSE data line (skip blank lines between events)
	gotData := false
	for i := 0; i < 5 && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), "temperature_sht") {
			gotData = true
			break
		}
	}
	if !gotData {
		t.Error("did not receive the device line over SSE")
	}

	// Cancel context to trigger the client disconnect path
	cancel()
}

// TestAttachAdminRoutes_TailSSE_ClientDisconnect exercises the context
// cancellation path: the handler must release its subscription when the
// watching client goes away.
func TestAttachAdminRoutes_TailSSE_ClientDisconnect(t *testing.T) {
	port := NewTestSerialPort("")
	mux := NewSerialMux(port)

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ts := httptest.NewServer(httpMux)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/debug/tail", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	cancel()
	resp.Body.Close()
}
