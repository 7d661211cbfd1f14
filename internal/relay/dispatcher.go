package relay

import (
	"log/slog"
	"regexp"
	"time"
	"unicode/utf8"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Dispatcher applies one parsed command to the registry and produces the
// response lines. The only registry mutation it performs itself is the
// LOGIN insert; pruning of dead peers is delegated to Delivery.
type Dispatcher struct {
	reg      *Registry
	delivery *Delivery
	maxText  int
	logger   *slog.Logger
}

func NewDispatcher(reg *Registry, delivery *Delivery, maxText int, logger *slog.Logger) *Dispatcher {
	if maxText <= 0 {
		maxText = 512
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{reg: reg, delivery: delivery, maxText: maxText, logger: logger}
}

// Dispatch runs one command for cl. A non-nil error is a transport failure
// on cl's own connection and ends the session; policy and protocol
// violations are answered with ERR lines and return nil. A panic inside
// command handling is converted to a generic ERR so one bad command cannot
// end the session.
func (d *Dispatcher) Dispatch(cl *client, cmd Command) (err error) {
	start := time.Now()
	verb := cmd.Kind.String()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in command handling", "conn_id", cl.id, "panic", r)
			err = d.reply(cl, "ERR Internal server error")
		}
		commandsTotal.WithLabelValues(verb).Inc()
		commandDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
	}()

	switch cmd.Kind {
	case CmdLogin:
		return d.handleLogin(cl, cmd.Name)
	case CmdMsg:
		return d.handleMsg(cl, cmd.Text)
	case CmdWho:
		return d.handleWho(cl)
	case CmdDm:
		return d.handleDm(cl, cmd.Name, cmd.Text)
	case CmdPing:
		return d.reply(cl, "PONG")
	default:
		return d.reply(cl, "ERR Unknown command")
	}
}

func (d *Dispatcher) handleLogin(cl *client, name string) error {
	// Identity is set exactly once per connection.
	if cl.loggedIn() {
		return d.reply(cl, "ERR Already logged in")
	}
	if name == "" {
		return d.reply(cl, "ERR Username cannot be empty")
	}
	if !usernameRe.MatchString(name) {
		return d.reply(cl, "ERR Username can only contain letters, numbers and underscore")
	}
	if err := d.reg.Register(name, cl.conn); err != nil {
		return d.reply(cl, "ERR username-taken")
	}
	cl.name = name

	if err := d.reply(cl, "OK"); err != nil {
		return err
	}
	d.delivery.Broadcast("INFO "+name+" joined the chat", name)
	return nil
}

func (d *Dispatcher) handleMsg(cl *client, text string) error {
	if !cl.loggedIn() {
		return d.reply(cl, "ERR Please login first")
	}
	if text == "" {
		return d.reply(cl, "ERR Message cannot be empty")
	}
	// The sender receives its own broadcast; that doubles as the ack.
	d.delivery.Broadcast("MSG "+cl.name+" "+d.clip(text), "")
	return nil
}

func (d *Dispatcher) handleWho(cl *client) error {
	if !cl.loggedIn() {
		return d.reply(cl, "ERR Please login first")
	}
	names := d.reg.Names()
	if len(names) == 0 {
		return d.reply(cl, "INFO No users online")
	}
	for _, name := range names {
		if err := d.reply(cl, "USER "+name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleDm(cl *client, target, text string) error {
	if !cl.loggedIn() {
		return d.reply(cl, "ERR Please login first")
	}
	if target == "" || text == "" {
		return d.reply(cl, "ERR Usage: DM <username> <message>")
	}
	peer, ok := d.reg.Lookup(target)
	if !ok {
		return d.reply(cl, "ERR User "+target+" not found")
	}
	if err := d.delivery.Unicast(peer.Conn, "DM "+cl.name+" "+d.clip(text)); err != nil {
		d.logger.Warn("dm delivery failed", "from", cl.name, "to", target, "error", err)
		if _, removed := d.reg.Remove(target); removed {
			_ = peer.Conn.Close()
		}
		return d.reply(cl, "ERR Failed to send DM to "+target)
	}
	return d.reply(cl, "INFO DM sent to "+target)
}

func (d *Dispatcher) reply(cl *client, line string) error {
	return d.delivery.Unicast(cl.conn, line)
}

// clip bounds text to maxText bytes, backing up so a multi-byte rune is
// never split; the wire is UTF-8.
func (d *Dispatcher) clip(text string) string {
	if len(text) <= d.maxText {
		return text
	}
	cut := d.maxText
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
