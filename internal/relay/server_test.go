package relay

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

func startTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.RateLimit = RateLimitConfig{PerSecond: 1000, Burst: 1000}
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg, testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTestServer(t *testing.T, srv *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

// expect reads lines until one starts with prefix, skipping unrelated
// broadcasts, and returns it.
func (c *testClient) expect(prefix string) string {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			c.t.Fatalf("set read deadline: %v", err)
		}
		line, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", prefix, err)
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
}

func (c *testClient) login(name string) {
	c.t.Helper()
	c.expect("INFO Welcome")
	c.send("LOGIN " + name)
	c.expect("OK")
}

func TestServer_LoginAndBroadcastRoundTrip(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialTestServer(t, srv)
	alice.login("alice")

	bob := dialTestServer(t, srv)
	bob.login("bob")

	alice.send("MSG hi")

	if got := alice.expect("MSG "); got != "MSG alice hi" {
		t.Fatalf("alice got %q, want MSG alice hi", got)
	}
	if got := bob.expect("MSG "); got != "MSG alice hi" {
		t.Fatalf("bob got %q, want MSG alice hi", got)
	}
}

func TestServer_DuplicateLoginLeavesFirstUserIntact(t *testing.T) {
	srv := startTestServer(t, nil)

	a := dialTestServer(t, srv)
	a.login("bob")

	b := dialTestServer(t, srv)
	b.expect("INFO Welcome")
	b.send("LOGIN bob")
	if got := b.expect("ERR"); got != "ERR username-taken" {
		t.Fatalf("got %q, want ERR username-taken", got)
	}

	a.send("MSG still here")
	if got := a.expect("MSG "); got != "MSG bob still here" {
		t.Fatalf("got %q", got)
	}
}

func TestServer_CaseInsensitiveVerbs(t *testing.T) {
	srv := startTestServer(t, nil)

	c := dialTestServer(t, srv)
	c.expect("INFO Welcome")
	c.send("login alice")
	c.expect("OK")
	c.send("ping")
	if got := c.expect("PONG"); got != "PONG" {
		t.Fatalf("got %q", got)
	}
}

func TestServer_WhoAndDm(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialTestServer(t, srv)
	alice.login("alice")
	bob := dialTestServer(t, srv)
	bob.login("bob")

	alice.send("WHO")
	if got := alice.expect("USER "); got != "USER alice" {
		t.Fatalf("first WHO line = %q", got)
	}
	if got := alice.expect("USER "); got != "USER bob" {
		t.Fatalf("second WHO line = %q", got)
	}

	alice.send("DM bob psst")
	if got := bob.expect("DM "); got != "DM alice psst" {
		t.Fatalf("bob got %q", got)
	}
	if got := alice.expect("INFO DM"); got != "INFO DM sent to bob" {
		t.Fatalf("alice got %q", got)
	}

	alice.send("DM nobody hello")
	if got := alice.expect("ERR"); got != "ERR User nobody not found" {
		t.Fatalf("got %q", got)
	}
}

func TestServer_CommandsBeforeLogin(t *testing.T) {
	srv := startTestServer(t, nil)

	c := dialTestServer(t, srv)
	c.expect("INFO Welcome")

	c.send("PING")
	c.expect("PONG")

	c.send("MSG hello")
	if got := c.expect("ERR"); got != "ERR Please login first" {
		t.Fatalf("got %q", got)
	}
}

func TestServer_DisconnectBroadcastsNotice(t *testing.T) {
	srv := startTestServer(t, nil)

	alice := dialTestServer(t, srv)
	alice.login("alice")
	bob := dialTestServer(t, srv)
	bob.login("bob")

	alice.conn.Close()

	if got := bob.expect("INFO alice"); got != "INFO alice disconnected" {
		t.Fatalf("got %q", got)
	}
}

func TestServer_RateLimitAnswersWithError(t *testing.T) {
	srv := startTestServer(t, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{PerSecond: 0.1, Burst: 2}
	})

	c := dialTestServer(t, srv)
	c.expect("INFO Welcome")

	c.send("PING")
	c.expect("PONG")
	c.send("PING")
	c.expect("PONG")
	c.send("PING")
	if got := c.expect("ERR"); got != "ERR Rate limit exceeded" {
		t.Fatalf("got %q", got)
	}
}

func TestServer_IdleSessionIsEvicted(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-second idle timeout")
	}
	srv := startTestServer(t, func(cfg *Config) {
		cfg.IdleTimeoutSec = 1
		cfg.ReapIntervalSec = 1
	})

	alice := dialTestServer(t, srv)
	alice.login("alice")
	bob := dialTestServer(t, srv)
	bob.login("bob")

	// Keep bob active while alice goes idle.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bob.conn.Write([]byte("PING\n"))
			case <-stop:
				return
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := bob.conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		line, err := bob.r.ReadString('\n')
		if err != nil {
			t.Fatalf("waiting for eviction notice: %v", err)
		}
		if strings.TrimRight(line, "\r\n") == "INFO alice disconnected (idle timeout)" {
			break
		}
	}

	// The evicted name is available again.
	alice2 := dialTestServer(t, srv)
	alice2.login("alice")
}
