// Package console is the serial debug console. Lines are tokenised with
// shell quoting rules and sent to the tracker loop as a request on
// console/cmd; "help" is answered locally.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"biketrack-go/bus"
	"biketrack-go/errcode"
	"biketrack-go/types"
	"biketrack-go/x/logx"

	"github.com/google/shlex"
)

var topicConsole = bus.T("console", "cmd")

// DefaultReplyTimeout covers a full fix acquisition.
const DefaultReplyTimeout = 150 * time.Second

const helpText = `commands:
  test         check accelerometer, presence and link
  gps          acquire a fix now
  sms          send a test message to the configured number
  status       show mode, config and alert state
  history      list stored locations
  clear        erase location history
  clearconfig  reset phone, interval and alerts to defaults
  sync         push history to the connected app
  help         this text`

type Service struct {
	conn    *bus.Connection
	log     logx.Logger
	timeout time.Duration
}

func New(conn *bus.Connection, timeout time.Duration, log logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	return &Service{conn: conn, log: log, timeout: timeout}
}

// Parse tokenises one console line. The command name is case-insensitive.
func Parse(line string) (types.ConsoleCommand, error) {
	toks, err := shlex.Split(line)
	if err != nil {
		return types.ConsoleCommand{}, errcode.Wrap(errcode.InvalidPayload, "console.parse", err)
	}
	if len(toks) == 0 {
		return types.ConsoleCommand{}, nil
	}
	return types.ConsoleCommand{Name: strings.ToLower(toks[0]), Args: toks[1:]}, nil
}

// Exec runs one line and returns the text to print.
func (s *Service) Exec(ctx context.Context, line string) (string, error) {
	cmd, err := Parse(line)
	if err != nil {
		return "", err
	}
	switch cmd.Name {
	case "":
		return "", nil
	case "help", "?":
		return helpText, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.conn.RequestWait(ctx, s.conn.NewMessage(topicConsole, cmd, false))
	if err != nil {
		return "", errcode.Wrap(errcode.MapDriverErr(err), "console."+cmd.Name, err)
	}
	out, ok := reply.Payload.(string)
	if !ok {
		return "", &errcode.E{C: errcode.InvalidPayload, Op: "console." + cmd.Name}
	}
	return out, nil
}

// Serve reads lines from r until EOF or ctx ends, writing replies to w.
func (s *Service) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out, err := s.Exec(ctx, sc.Text())
		if err != nil {
			out = "error: " + err.Error()
			s.log.Warn("command failed", "line", sc.Text(), "err", err)
		}
		if out != "" {
			if _, err := io.WriteString(w, out+"\n"); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}
