package relay

import "golang.org/x/time/rate"

const welcomeLine = "INFO Welcome to the chat server! Please login with: LOGIN <username>"

// client is the per-connection view the dispatcher operates on: the
// transport plus the identity established by LOGIN, if any.
type client struct {
	id      string
	conn    Conn
	name    string // empty until LOGIN succeeds
	limiter *rate.Limiter
}

func (c *client) loggedIn() bool {
	return c.name != ""
}

// handleSession runs the command loop for one accepted connection until
// the peer goes away, the transport fails, or the reaper closes the
// socket.
func (s *Server) handleSession(cl *client) {
	defer s.finishSession(cl)

	if err := s.delivery.Unicast(cl.conn, welcomeLine); err != nil {
		return
	}

	for {
		line, err := cl.conn.ReadLine()
		if err != nil {
			return
		}

		cmd, ok := ParseCommand(line)
		if !ok {
			// blank line
			continue
		}

		if cl.limiter != nil && !cl.limiter.Allow() {
			if err := s.delivery.Unicast(cl.conn, "ERR Rate limit exceeded"); err != nil {
				return
			}
			continue
		}

		if cl.loggedIn() {
			s.reg.Touch(cl.name)
		}

		if err := s.dispatcher.Dispatch(cl, cmd); err != nil {
			s.logger.Info("client write failed", "conn_id", cl.id, "error", err)
			return
		}
	}
}

// finishSession is the connection's own cleanup. It is idempotent against
// the reaper and the delivery engine: whoever removes the registry entry
// first wins, the loser sees Remove report absence and stays quiet.
func (s *Server) finishSession(cl *client) {
	_ = cl.conn.Close()

	if cl.loggedIn() {
		if _, ok := s.reg.Remove(cl.name); ok {
			s.delivery.Broadcast("INFO "+cl.name+" disconnected", "")
		}
	}
	s.logger.Info("client disconnected", "conn_id", cl.id, "addr", cl.conn.RemoteAddr())
}
