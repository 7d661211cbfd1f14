package relay

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn recording everything written to it. Writes
// can be scripted to fail to simulate a dead peer.
type fakeConn struct {
	mu         sync.Mutex
	lines      []string
	failWrites bool
	closed     bool
}

func (c *fakeConn) ReadLine() (string, error) { return "", io.EOF }

func (c *fakeConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites || c.closed {
		return ErrConnClosed
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *fakeConn) hasLine(line string) bool {
	for _, l := range c.written() {
		if l == line {
			return true
		}
	}
	return false
}

func (c *fakeConn) setFailWrites(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = fail
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func lastLine(t *testing.T, c *fakeConn) string {
	t.Helper()
	lines := c.written()
	if len(lines) == 0 {
		t.Fatal("no lines written")
	}
	return lines[len(lines)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher() (*Registry, *Delivery, *Dispatcher) {
	logger := testLogger()
	reg := NewRegistry(logger)
	delivery := NewDelivery(reg, logger)
	return reg, delivery, NewDispatcher(reg, delivery, 0, logger)
}

// mustDispatch parses line and runs it through the dispatcher, failing the
// test on a transport error.
func mustDispatch(t *testing.T, d *Dispatcher, cl *client, line string) {
	t.Helper()
	cmd, ok := ParseCommand(line)
	if !ok {
		t.Fatalf("no command parsed from %q", line)
	}
	if err := d.Dispatch(cl, cmd); err != nil {
		t.Fatalf("dispatch %q: %v", line, err)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
