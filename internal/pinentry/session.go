// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

package pinentry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/toeirei/keymaster-pinentry/internal/assuan"
	"github.com/toeirei/keymaster-pinentry/internal/i18n"
	"github.com/toeirei/keymaster-pinentry/internal/logging"
	"github.com/toeirei/keymaster-pinentry/internal/security"
)

// DefaultMaxPinLength is the secure buffer capacity used when none is
// configured.
const DefaultMaxPinLength = 2048

// DefaultMaxAttempts is the retry limit used when none is configured.
const DefaultMaxAttempts = 3

// State is the position of a session in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateAwaitingInput
	StateResponding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateAwaitingInput:
		return "awaiting-input"
	case StateResponding:
		return "responding"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// ResponseWriter receives the reply to a command. *assuan.Encoder
// implements it.
type ResponseWriter interface {
	OK(comment string) error
	Err(e assuan.Error) error
	Data(p []byte) error
	Status(keyword, args string) error
	Comment(text string) error
}

// Config configures a Session.
type Config struct {
	Backend Backend
	// Codes maps failures to wire codes; nil means the defaults.
	Codes *assuan.Codes
	// MaxPinLength is the capacity in bytes of the buffer a secret is read
	// into. Longer input is rejected with a "too large" error.
	MaxPinLength int
	// Timeout applies to requests that did not get a SETTIMEOUT.
	Timeout time.Duration
	// Sticky seeds the connection-wide settings, e.g. from command line
	// flags. OPTION overrides them.
	Sticky Sticky
	// Flavor and Version are reported by GETINFO.
	Flavor  string
	Version string
	Logger  *clog.Logger
}

// Session is the state of one client connection. It is not safe for
// concurrent use; the server drives one session at a time.
type Session struct {
	cfg    Config
	codes  *assuan.Codes
	log    *clog.Logger
	state  State
	opts   Options
	sticky Sticky
	// failure is the terminal error that ended the session, if any.
	failure error
}

// NewSession returns an idle session.
func NewSession(cfg Config) *Session {
	if cfg.MaxPinLength <= 0 {
		cfg.MaxPinLength = DefaultMaxPinLength
	}
	if cfg.Codes == nil {
		cfg.Codes = assuan.DefaultCodes()
	}
	if cfg.Flavor == "" {
		cfg.Flavor = "tty"
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logging.L
	}
	return &Session{
		cfg:    cfg,
		codes:  cfg.Codes,
		log:    lg,
		sticky: cfg.Sticky,
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Terminated reports whether the session accepts no more commands.
func (s *Session) Terminated() bool { return s.state == StateTerminated }

// Options returns a copy of the pending request options.
func (s *Session) Options() Options { return s.opts }

// Sticky returns a copy of the connection-wide settings.
func (s *Session) Sticky() Sticky { return s.sticky }

// Failure returns the terminal error that ended the session, or nil.
func (s *Session) Failure() error { return s.failure }

// Terminate moves the session to its final state.
func (s *Session) Terminate() { s.state = StateTerminated }

// Handle processes one command and writes its reply to w. The returned
// error is a failure of w; the caller should treat it as a broken transport
// and stop. Every other failure is reported to the client through w.
func (s *Session) Handle(ctx context.Context, cmd assuan.Command, w ResponseWriter) error {
	if s.state == StateTerminated {
		return errors.New("session terminated")
	}
	s.log.Debug("command", "verb", cmd.Verb)

	if cmd.Kind == assuan.KindOption {
		return s.option(cmd, w)
	}
	if s.opts.apply(cmd) {
		s.state = StateAccumulating
		return w.OK("")
	}

	switch cmd.Kind {
	case assuan.KindGetPin:
		return s.request(func() error { return s.getPin(ctx, w) })
	case assuan.KindConfirm:
		return s.request(func() error { return s.confirm(ctx, w, cmd.OneButton, false) })
	case assuan.KindMessage:
		return s.request(func() error { return s.confirm(ctx, w, true, true) })
	case assuan.KindGetInfo:
		return s.getInfo(cmd.Arg, w)
	case assuan.KindReset:
		s.opts = Options{}
		s.state = StateIdle
		return w.OK("")
	case assuan.KindNop:
		return w.OK("")
	case assuan.KindBye:
		s.state = StateTerminated
		return w.OK("closing connection")
	}
	return w.Err(s.codes.Get(assuan.ErrorUnknownCommand))
}

// request runs a human interaction and resets the request options on every
// path.
func (s *Session) request(fn func() error) error {
	s.state = StateAwaitingInput
	err := fn()
	s.opts = Options{}
	if s.state != StateTerminated {
		s.state = StateIdle
	}
	if err != nil {
		s.state = StateTerminated
	}
	return err
}

func (s *Session) option(cmd assuan.Command, w ResponseWriter) error {
	known, err := s.sticky.setOption(cmd.Key, cmd.Value)
	if err != nil {
		return w.Err(s.codes.Get(assuan.ErrorInvalidValue))
	}
	if s.state == StateIdle {
		s.state = StateAccumulating
	}
	if !known {
		s.log.Debug("ignoring unknown option", "key", cmd.Key)
	}
	return w.OK("")
}

func (s *Session) getPin(ctx context.Context, w ResponseWriter) error {
	opts := s.opts
	if opts.Error != "" {
		s.sticky.attempts++
	} else {
		s.sticky.attempts = 0
	}
	if s.tooManyAttempts(s.sticky.attempts) {
		s.log.Warn("retry limit reached", "attempts", s.sticky.attempts)
		return s.reply(w, s.codes.Get(assuan.ErrorTooManyAttempts))
	}

	prompt := s.pinPrompt(opts)
	buf := security.NewBuffer(s.cfg.MaxPinLength)
	defer buf.Release()

	mismatches := 0
	for {
		outcome, err := s.readSecret(ctx, prompt, buf)
		if err != nil || outcome != OutcomeEntered {
			return s.replyOutcome(w, outcome, err)
		}
		if !opts.Repeat {
			break
		}

		repeat := prompt
		repeat.Prompt = withTrailingSpace(firstNonEmpty(opts.RepeatPrompt, i18n.TL(prompt.Lang, "prompt.repeat")))
		repeat.Error = ""
		confirmBuf := security.NewBuffer(s.cfg.MaxPinLength)
		outcome, err = s.readSecret(ctx, repeat, confirmBuf)
		match := outcome == OutcomeEntered && err == nil && buf.Equal(confirmBuf)
		confirmBuf.Release()
		if err != nil || outcome != OutcomeEntered {
			return s.replyOutcome(w, outcome, err)
		}
		if match {
			s.state = StateResponding
			if err := w.Status("PIN_REPEATED", ""); err != nil {
				return err
			}
			break
		}

		mismatches++
		if s.tooManyAttempts(mismatches) {
			return s.reply(w, s.codes.Get(assuan.ErrorTooManyAttempts))
		}
		buf.Truncate()
		prompt.Error = firstNonEmpty(opts.RepeatError, i18n.TL(prompt.Lang, "error.repeat_mismatch"))
	}

	s.state = StateResponding
	if err := buf.Use(w.Data); err != nil {
		return err
	}
	buf.Release()
	s.log.Debug("pin delivered")
	return w.OK("")
}

func (s *Session) readSecret(ctx context.Context, p Prompt, buf *security.Buffer) (Outcome, error) {
	h, err := s.cfg.Backend.Display(ctx, p)
	if err != nil {
		return OutcomeCancelled, err
	}
	outcome, err := h.ReadSecret(ctx, buf)
	if cerr := h.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return outcome, err
}

func (s *Session) tooManyAttempts(n int) bool {
	return s.sticky.MaxAttempts > 0 && n > s.sticky.MaxAttempts
}

func (s *Session) confirm(ctx context.Context, w ResponseWriter, oneButton, message bool) error {
	d := s.dialog(oneButton)
	var (
		choice Choice
		err    error
	)
	if message {
		choice, err = s.cfg.Backend.Message(ctx, d)
	} else {
		choice, err = s.cfg.Backend.Confirm(ctx, d)
	}
	if err != nil {
		return s.backendFailure(w, err)
	}
	s.log.Debug("dialog closed", "choice", choice)
	switch choice {
	case ChoiceYes:
		s.state = StateResponding
		return w.OK("")
	case ChoiceNo:
		return s.reply(w, s.codes.Get(assuan.ErrorNotConfirmed))
	case ChoiceTimedOut:
		return s.reply(w, s.codes.Get(assuan.ErrorTimeout))
	}
	return s.reply(w, s.codes.Get(assuan.ErrorCancelled))
}

func (s *Session) replyOutcome(w ResponseWriter, outcome Outcome, err error) error {
	if err != nil {
		if errors.Is(err, security.ErrBufferFull) {
			return s.reply(w, s.codes.Get(assuan.ErrorTooLarge))
		}
		return s.backendFailure(w, err)
	}
	s.log.Debug("prompt closed", "outcome", outcome)
	if outcome == OutcomeTimedOut {
		return s.reply(w, s.codes.Get(assuan.ErrorTimeout))
	}
	return s.reply(w, s.codes.Get(assuan.ErrorCancelled))
}

// backendFailure reports a terminal that could not be used. The session
// cannot make progress without one, so it ends.
func (s *Session) backendFailure(w ResponseWriter, err error) error {
	s.log.Error("terminal failure", "err", err)
	werr := s.reply(w, s.codes.WithMessage(assuan.ErrorGeneral, err.Error()))
	s.state = StateTerminated
	s.failure = err
	return werr
}

func (s *Session) reply(w ResponseWriter, e assuan.Error) error {
	s.state = StateResponding
	return w.Err(e)
}

func (s *Session) getInfo(what string, w ResponseWriter) error {
	var val string
	switch strings.TrimSpace(what) {
	case "version":
		val = s.cfg.Version
	case "pid":
		val = strconv.Itoa(os.Getpid())
	case "flavor":
		val = s.cfg.Flavor
	case "ttyinfo":
		t := s.sticky.TTY
		val = fmt.Sprintf("%s %s %s", dash(t.Name), dash(t.Type), dash(t.Display))
	default:
		return w.Err(s.codes.Get(assuan.ErrorParameter))
	}
	if err := w.Data([]byte(val)); err != nil {
		return err
	}
	return w.OK("")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (s *Session) timeout(o Options) time.Duration {
	if o.HasTimeout {
		return o.Timeout
	}
	return s.cfg.Timeout
}

func (s *Session) pinPrompt(o Options) Prompt {
	lang := s.sticky.lang()
	return Prompt{
		Title:       firstNonEmpty(o.Title, i18n.TL(lang, "title.getpin")),
		Description: o.Description,
		Prompt:      withTrailingSpace(firstNonEmpty(o.Prompt, s.sticky.DefaultPrompt, i18n.TL(lang, "prompt.default"))),
		Error:       o.Error,
		KeyInfo:     o.KeyInfo,
		OK:          newButton(firstNonEmpty(o.OKLabel, s.sticky.DefaultOK, i18n.TL(lang, "label.ok")), ChoiceYes),
		Cancel:      newButton(firstNonEmpty(o.CancelLabel, s.sticky.DefaultCancel, i18n.TL(lang, "label.cancel")), ChoiceCancelled),
		Timeout:     s.timeout(o),
		TTY:         s.sticky.TTY,
		Lang:        lang,
	}
}

func (s *Session) dialog(oneButton bool) Dialog {
	o := s.opts
	lang := s.sticky.lang()
	d := Dialog{
		Title:       firstNonEmpty(o.Title, i18n.TL(lang, "title.confirm")),
		Description: o.Description,
		Error:       o.Error,
		Timeout:     s.timeout(o),
		TTY:         s.sticky.TTY,
		Lang:        lang,
	}
	d.Buttons = append(d.Buttons, newButton(firstNonEmpty(o.OKLabel, s.sticky.DefaultOK, i18n.TL(lang, "label.ok")), ChoiceYes))
	if oneButton {
		return d
	}
	notOK := firstNonEmpty(o.NotOKLabel, s.sticky.DefaultNotOK)
	cancel := firstNonEmpty(o.CancelLabel, s.sticky.DefaultCancel)
	if notOK == "" && cancel == "" {
		cancel = i18n.TL(lang, "label.cancel")
	}
	if notOK != "" {
		d.Buttons = append(d.Buttons, newButton(notOK, ChoiceNo))
	}
	if cancel != "" {
		d.Buttons = append(d.Buttons, newButton(cancel, ChoiceCancelled))
	}
	return d
}
