// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package server drives pinentry sessions over a byte stream: stdio for the
// classic one-shot mode, or connections accepted one at a time from a
// listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/toeirei/keymaster-pinentry/internal/assuan"
	"github.com/toeirei/keymaster-pinentry/internal/journal"
	"github.com/toeirei/keymaster-pinentry/internal/logging"
	"github.com/toeirei/keymaster-pinentry/internal/pinentry"
	"github.com/toeirei/keymaster-pinentry/internal/transcript"
)

// Journal receives per-session records. *journal.Journal implements it.
type Journal interface {
	StartSession(ctx context.Context, id, transport string) error
	RecordEvent(ctx context.Context, ev journal.Event) error
	EndSession(ctx context.Context, id, outcome string) error
}

// Config is shared by every connection served.
type Config struct {
	// Session is the template for each new session.
	Session pinentry.Config
	// Transport names the channel in logs and the journal; Serve fills it
	// from the listener.
	Transport  string
	Journal    Journal
	Transcript *transcript.Recorder
	Logger     *clog.Logger
}

func (c Config) logger() *clog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.L
}

// ErrTerminal wraps the backend error of a session that ended because the
// terminal could not be used.
var ErrTerminal = errors.New("terminal unavailable")

// Session end reasons recorded in the journal.
const (
	EndClosed    = "closed"
	EndEOF       = "eof"
	EndFraming   = "framing_error"
	EndTerminal  = "terminal_error"
	EndTransport = "transport_error"
	EndCancelled = "cancelled"
)

// ServeConn runs one session on rw until the client says BYE, the stream
// ends, a framing error occurs or the session fails. The returned error is
// an I/O failure of rw, ErrTerminal when the terminal failed, or ctx's
// error; protocol problems are answered on the wire and end the session
// with a nil error.
func ServeConn(ctx context.Context, rw io.ReadWriter, cfg Config) error {
	id := uuid.NewString()
	lg := cfg.logger().With("session", id)
	transport := cfg.Transport
	if transport == "" {
		transport = "stdio"
	}

	if cfg.Transcript != nil {
		cfg.Transcript.Mark("session " + id + " (" + transport + ")")
		rw = cfg.Transcript.Wrap(rw)
	}

	sc := cfg.Session
	sc.Logger = lg
	if sc.Codes == nil {
		sc.Codes = assuan.DefaultCodes()
	}
	codes := sc.Codes
	sess := pinentry.NewSession(sc)

	j := journalHook{j: cfg.Journal, id: id, log: lg}
	j.start(ctx, transport)
	lg.Info("session started", "transport", transport)

	end, err := serve(ctx, rw, sess, codes, &j, lg)
	j.end(end)
	lg.Info("session ended", "reason", end)
	return err
}

func serve(ctx context.Context, rw io.ReadWriter, sess *pinentry.Session, codes *assuan.Codes, j *journalHook, lg *clog.Logger) (string, error) {
	enc := assuan.NewEncoder(rw)
	lr := assuan.NewLineReader(rw)
	defer lr.Wipe()

	if err := enc.OK(fmt.Sprintf("Pleased to meet you, process %d", os.Getpid())); err != nil {
		return EndTransport, fmt.Errorf("write greeting: %w", err)
	}

	w := &capture{ResponseWriter: enc}
	for {
		if err := ctx.Err(); err != nil {
			return EndCancelled, err
		}

		line, err := lr.ReadLine()
		if err != nil {
			return readFailure(err, enc, codes, lg)
		}
		if assuan.IsComment(line) {
			continue
		}

		w.reset()
		cmd, err := assuan.ParseCommand(line)
		if err != nil {
			err = parseFailure(err, w, codes)
		} else {
			err = sess.Handle(ctx, cmd, w)
		}
		j.record(ctx, verbOf(cmd), w)
		if err != nil {
			lg.Warn("write failed", "err", err)
			return EndTransport, fmt.Errorf("write response: %w", err)
		}
		if sess.Terminated() {
			if cmd.Kind == assuan.KindBye {
				return EndClosed, nil
			}
			if ferr := sess.Failure(); ferr != nil {
				return EndTerminal, fmt.Errorf("%w: %w", ErrTerminal, ferr)
			}
			return EndTerminal, ErrTerminal
		}
	}
}

// readFailure answers framing errors before giving up on the connection.
func readFailure(err error, enc *assuan.Encoder, codes *assuan.Codes, lg *clog.Logger) (string, error) {
	var kind assuan.ErrorKind
	switch {
	case errors.Is(err, io.EOF):
		return EndEOF, nil
	case errors.Is(err, assuan.ErrLineTooLong):
		kind = assuan.ErrorLineTooLong
	case errors.Is(err, assuan.ErrIncompleteLine):
		kind = assuan.ErrorIncompleteLine
	default:
		return EndTransport, fmt.Errorf("read request: %w", err)
	}
	lg.Warn("framing error", "err", err)
	if werr := enc.Err(codes.Get(kind)); werr != nil {
		return EndTransport, fmt.Errorf("write response: %w", werr)
	}
	return EndFraming, nil
}

func parseFailure(err error, w pinentry.ResponseWriter, codes *assuan.Codes) error {
	if errors.Is(err, assuan.ErrMalformedEscape) {
		return w.Err(codes.Get(assuan.ErrorParameter))
	}
	return w.Err(codes.Get(assuan.ErrorInvalidValue))
}

// verbOf keeps free text sent by the client out of the journal.
func verbOf(cmd assuan.Command) string {
	if cmd.Kind == assuan.KindUnknown {
		return "UNKNOWN"
	}
	return cmd.Verb
}

// capture remembers how the last command was answered.
type capture struct {
	pinentry.ResponseWriter
	outcome string
	code    uint32
}

func (c *capture) reset() {
	c.outcome, c.code = "", 0
}

func (c *capture) OK(comment string) error {
	c.outcome = "ok"
	return c.ResponseWriter.OK(comment)
}

func (c *capture) Err(e assuan.Error) error {
	c.outcome, c.code = "err", e.Code
	return c.ResponseWriter.Err(e)
}

type journalHook struct {
	j      Journal
	id     string
	log    *clog.Logger
	failed bool
}

func (h *journalHook) start(ctx context.Context, transport string) {
	if h.j == nil {
		return
	}
	if err := h.j.StartSession(ctx, h.id, transport); err != nil {
		h.log.Warn("journal unavailable for session", "err", err)
		h.failed = true
	}
}

func (h *journalHook) record(ctx context.Context, verb string, c *capture) {
	if h.j == nil || h.failed {
		return
	}
	ev := journal.Event{SessionID: h.id, Verb: verb, Outcome: c.outcome, Code: c.code}
	if err := h.j.RecordEvent(ctx, ev); err != nil {
		h.log.Warn("journal write failed", "err", err)
	}
}

func (h *journalHook) end(reason string) {
	if h.j == nil || h.failed {
		return
	}
	// The session may end because ctx was cancelled; the record still lands.
	if err := h.j.EndSession(context.Background(), h.id, reason); err != nil {
		h.log.Warn("journal write failed", "err", err)
	}
}

// Serve accepts connections from l and serves them one after another until
// ctx is cancelled, which closes both the listener and the active
// connection. Failures of single sessions are logged and do not stop the
// loop.
func Serve(ctx context.Context, l net.Listener, cfg Config) error {
	var (
		mu     sync.Mutex
		active net.Conn
	)
	stop := context.AfterFunc(ctx, func() {
		_ = l.Close()
		mu.Lock()
		if active != nil {
			_ = active.Close()
		}
		mu.Unlock()
	})
	defer stop()

	if cfg.Transport == "" {
		cfg.Transport = l.Addr().Network()
	}
	lg := cfg.logger()
	lg.Info("listening", "addr", l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		mu.Lock()
		active = conn
		mu.Unlock()
		if ctx.Err() != nil {
			_ = conn.Close()
			return nil
		}

		if err := ServeConn(ctx, conn, cfg); err != nil && ctx.Err() == nil {
			lg.Warn("session failed", "err", err)
		}

		mu.Lock()
		active = nil
		mu.Unlock()
		_ = conn.Close()
	}
}
