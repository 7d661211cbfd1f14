package relay

import "time"

// session binds a logged-in username to its connection and activity
// timestamp. Owned by the Registry after Register; lastActive is guarded
// by the Registry lock.
type session struct {
	name       string
	conn       Conn
	lastActive time.Time
}

func (s *session) peer() Peer {
	return Peer{Name: s.name, Conn: s.conn, LastActive: s.lastActive}
}

// Peer is a point-in-time copy of a session, safe to use after the
// Registry lock has been released.
type Peer struct {
	Name       string
	Conn       Conn
	LastActive time.Time
}

var (
	ErrUsernameTaken = errorString("username_taken")
	ErrConnClosed    = errorString("connection_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }
