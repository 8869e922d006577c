package stream

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/xhad/askpdf/internal/types"
	"github.com/xhad/askpdf/pkg/gateway"
	"github.com/xhad/askpdf/pkg/logger"
)

const module = "stream"

type State int

const (
	Idle State = iota
	Streaming
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrActive is returned when a query is started while another is streaming.
var ErrActive = errors.New("a query is already streaming")

// Opener is the part of the backend the aggregator needs.
type Opener interface {
	QueryStream(ctx context.Context, question string, topK int) (types.Fragments, error)
}

// QuerySession is the state of the question being answered.
type QuerySession struct {
	Question      string
	TopK          int
	PartialAnswer string
	Terminal      bool
}

// Progress is emitted after every fragment. PartialAnswer only ever grows.
type Progress struct {
	Question      string
	Fragment      string
	PartialAnswer string
}

type ProgressFunc func(Progress)

// Result is how a query ended. Content is what belongs in the transcript.
type Result struct {
	State      State
	Content    string
	Incomplete bool
	Err        error
}

type Aggregator struct {
	opener Opener
	log    types.Logger

	mu      sync.Mutex
	state   State
	session *QuerySession
}

func New(opener Opener, log types.Logger) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{opener: opener, log: log}
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Active returns a copy of the in-flight query, if any.
func (a *Aggregator) Active() (QuerySession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return QuerySession{}, false
	}
	return *a.session, true
}

// BeginQuery streams one answer to completion. Fragments are appended in
// arrival order and each one is handed to onProgress before the next is read.
// It always returns a Result with terminal content unless ErrActive.
func (a *Aggregator) BeginQuery(ctx context.Context, question string, topK int, onProgress ProgressFunc) (Result, error) {
	a.mu.Lock()
	if a.state == Streaming {
		a.mu.Unlock()
		return Result{}, ErrActive
	}
	a.state = Streaming
	a.session = &QuerySession{Question: question, TopK: topK}
	a.mu.Unlock()

	result := a.run(ctx, question, topK, onProgress)

	a.mu.Lock()
	a.session.Terminal = true
	a.state = result.State
	a.mu.Unlock()

	a.log.Info(module, "query finished", map[string]interface{}{
		"state":      result.State.String(),
		"length":     len(result.Content),
		"incomplete": result.Incomplete,
	})

	a.release()
	return result, nil
}

func (a *Aggregator) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
	a.state = Idle
}

func (a *Aggregator) run(ctx context.Context, question string, topK int, onProgress ProgressFunc) Result {
	fragments, err := a.opener.QueryStream(ctx, question, topK)
	if err != nil {
		a.log.Warn(module, "stream could not be opened", map[string]interface{}{"error": err.Error()})
		return failed("", err)
	}
	defer fragments.Close()

	// A stream refused by the server carries its error before any fragment.
	if err := fragments.Err(); err != nil {
		a.log.Warn(module, "stream refused", map[string]interface{}{"error": err.Error()})
		return failed("", err)
	}

	var answer strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return failed(answer.String(), err)
		}

		fragment, ok := fragments.Next()
		if !ok {
			break
		}
		answer.WriteString(fragment)
		partial := answer.String()

		a.mu.Lock()
		a.session.PartialAnswer = partial
		a.mu.Unlock()

		if onProgress != nil {
			onProgress(Progress{Question: question, Fragment: fragment, PartialAnswer: partial})
		}
	}

	if err := fragments.Err(); err != nil {
		a.log.Warn(module, "stream ended early", map[string]interface{}{"error": err.Error(), "received": answer.Len()})
		return failed(answer.String(), err)
	}
	return Result{State: Complete, Content: answer.String()}
}

// failed builds the terminal content for a broken query: whatever arrived,
// followed by the fallback message.
func failed(partial string, err error) Result {
	fallback := gateway.FallbackMessage
	if kind, ok := gateway.KindOf(err); ok && kind == gateway.ConnectionFailed {
		fallback = gateway.ConnectionFallbackMessage
	}

	content := fallback
	if strings.TrimSpace(partial) != "" {
		content = partial + "\n\n" + fallback
	}
	return Result{
		State:      Failed,
		Content:    content,
		Incomplete: true,
		Err:        err,
	}
}
