package relay

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still streaming")
	ErrRevealed     = errors.New("game is over")
)

// Options configures a Duel.
type Options struct {
	// OnUpdate receives a copy of a pane's state after every change. Calls for
	// one pane arrive in order; calls for the two panes may run concurrently.
	OnUpdate func(Update)
	// OnError is the toast: it reports a pane's stream failure.
	OnError func(Persona, error)
	// Authentic fixes which pane talks to the real persona. Random when empty.
	Authentic Persona
	Logger    *zap.Logger
}

type pane struct {
	persona Persona

	mu    sync.Mutex
	state State
	gen   int
}

// Duel runs the two persona conversations of one game.
type Duel struct {
	opener Opener
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	panes     [2]*pane
	authentic Persona
	revealed  bool
	cancel    context.CancelFunc
}

// ------------------------------------------------------------------------------------------------------
func NewDuel(opener Opener, opts Options) *Duel {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Duel{
		opener: opener,
		opts:   opts,
		logger: logger,
	}
	for i, p := range Personas {
		d.panes[i] = &pane{persona: p}
	}
	d.authentic = d.pickAuthentic()
	return d
}

// ------------------------------------------------------------------------------------------------------
// Send appends text as a user message to both panes and streams both replies
// concurrently. It returns once both streams have finished. A failing stream
// is reported through OnError and leaves the other pane untouched.
func (d *Duel) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	d.mu.Lock()
	if d.revealed {
		d.mu.Unlock()
		return ErrRevealed
	}
	for _, p := range d.panes {
		if p.loading() {
			d.mu.Unlock()
			return ErrBusy
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	authentic := d.authentic

	type turn struct {
		pane    *pane
		gen     int
		history []Message
	}
	var turns [2]turn
	for i, p := range d.panes {
		gen, history := p.begin(Message{Role: RoleUser, Content: text})
		turns[i] = turn{pane: p, gen: gen, history: history}
	}
	d.mu.Unlock()
	defer cancel()

	for _, t := range turns {
		d.emit(t.pane)
	}

	var wg conc.WaitGroup
	for _, t := range turns {
		t := t
		wg.Go(func() {
			d.stream(runCtx, t.pane, t.gen, Request{
				Messages:  t.history,
				Authentic: t.pane.persona == authentic,
			})
		})
	}
	wg.Wait()

	return nil
}

func (d *Duel) stream(ctx context.Context, p *pane, gen int, req Request) {
	defer func() {
		if p.finish(gen) {
			d.emit(p)
		}
	}()

	body, err := d.opener.Open(ctx, req)
	if err == nil {
		_, err = Consume(ctx, body, func(content string) {
			if p.apply(gen, content) {
				d.emit(p)
			}
		})
	}
	if err == nil {
		return
	}

	if ctx.Err() != nil {
		d.logger.Debug("Stream cancelled", zap.String("persona", string(p.persona)))
		return
	}
	d.logger.Error("Stream failed", zap.String("persona", string(p.persona)), zap.Error(err))
	if d.opts.OnError != nil {
		d.opts.OnError(p.persona, err)
	}
}

// ------------------------------------------------------------------------------------------------------
// Reveal ends the game and returns the pane that was backed by the real persona.
func (d *Duel) Reveal() Persona {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revealed = true
	return d.authentic
}

func (d *Duel) Revealed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revealed
}

// ------------------------------------------------------------------------------------------------------
// Reset cancels any in-flight streams and starts a fresh game.
func (d *Duel) Reset() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	for _, p := range d.panes {
		p.reset()
	}
	d.revealed = false
	d.authentic = d.pickAuthentic()
	d.mu.Unlock()

	for _, p := range d.panes {
		d.emit(p)
	}
}

// Snapshot returns a copy of a pane's current state.
func (d *Duel) Snapshot(persona Persona) State {
	for _, p := range d.panes {
		if p.persona == persona {
			return p.snapshot()
		}
	}
	return State{}
}

func (d *Duel) emit(p *pane) {
	if d.opts.OnUpdate != nil {
		d.opts.OnUpdate(Update{Persona: p.persona, State: p.snapshot()})
	}
}

func (d *Duel) pickAuthentic() Persona {
	if d.opts.Authentic != "" {
		return d.opts.Authentic
	}
	return Personas[rand.Intn(len(Personas))]
}

func (p *pane) loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.IsLoading
}

// begin appends the user turn, marks the pane loading and returns the
// generation and history for the request.
func (p *pane) begin(msg Message) (int, []Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Messages = append(p.state.Messages, msg)
	p.state.IsLoading = true
	return p.gen, p.state.clone().Messages
}

// apply grows the in-progress assistant message, or starts one. Updates from
// a stream that outlived a reset are ignored.
func (p *pane) apply(gen int, content string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	if n := len(p.state.Messages); n > 0 && p.state.Messages[n-1].Role == RoleAssistant {
		p.state.Messages[n-1].Content = content
		return true
	}
	p.state.Messages = append(p.state.Messages, Message{Role: RoleAssistant, Content: content})
	return true
}

func (p *pane) finish(gen int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.state.IsLoading = false
	return true
}

func (p *pane) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.state = State{}
}

func (p *pane) snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}
