package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/internal/types"
	"github.com/xhad/askpdf/pkg/conversation"
	"github.com/xhad/askpdf/pkg/gateway"
	"github.com/xhad/askpdf/pkg/logger"
	"github.com/xhad/askpdf/pkg/registry"
	"github.com/xhad/askpdf/pkg/stream"
	"golang.org/x/time/rate"
)

const module = "session"

const (
	MinTopK     = 1
	MaxTopK     = 10
	DefaultTopK = 5
)

var (
	ErrBusy          = errors.New("a question is already being answered")
	ErrInvalidTopK   = fmt.Errorf("top_k must be between %d and %d", MinTopK, MaxTopK)
	ErrEmptyQuestion = errors.New("question is empty")
)

type ControllerConfig struct {
	TopK       int
	Streaming  bool
	UploadRate float64 // uploads per second; 0 means unlimited
	Logger     types.Logger
	Now        func() time.Time
}

// Controller owns the session: the knowledge base registry, the transcript,
// and the settings. It is the only thing that mutates them.
type Controller struct {
	id           string
	backend      types.Backend
	registry     *registry.Registry
	conversation *conversation.Store
	aggregator   *stream.Aggregator
	limiter      *rate.Limiter
	log          types.Logger
	now          func() time.Time

	mu        sync.Mutex
	busy      bool
	topK      int
	streaming bool
}

func NewWithConfig(backend types.Backend, config ControllerConfig) (*Controller, error) {
	if config.TopK == 0 {
		config.TopK = DefaultTopK
	}
	if config.TopK < MinTopK || config.TopK > MaxTopK {
		return nil, ErrInvalidTopK
	}
	if config.UploadRate < 0 {
		return nil, fmt.Errorf("upload rate cannot be negative")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	limit := rate.Inf
	if config.UploadRate > 0 {
		limit = rate.Limit(config.UploadRate)
	}

	c := &Controller{
		id:           uuid.NewString(),
		backend:      backend,
		registry:     registry.New(),
		conversation: conversation.New(),
		aggregator:   stream.New(backend, config.Logger),
		limiter:      rate.NewLimiter(limit, 1),
		log:          config.Logger,
		now:          config.Now,
		topK:         config.TopK,
		streaming:    config.Streaming,
	}
	c.log.Info(module, "session started", map[string]interface{}{"session_id": c.id, "top_k": c.topK, "streaming": c.streaming})
	return c, nil
}

func New(backend types.Backend) *Controller {
	c, _ := NewWithConfig(backend, ControllerConfig{Streaming: true})
	return c
}

func (c *Controller) ID() string {
	return c.id
}

// SubmitDocuments uploads each file independently. Only successful uploads
// reach the registry; onFile, if set, sees every outcome as it happens.
func (c *Controller) SubmitDocuments(ctx context.Context, files []models.File, onFile func(models.UploadOutcome)) models.BatchResult {
	result := models.BatchResult{Outcomes: make([]models.UploadOutcome, 0, len(files))}

	for _, file := range files {
		outcome := c.uploadOne(ctx, file)
		if outcome.OK() {
			result.TotalChunks += outcome.Chunks
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if onFile != nil {
			onFile(outcome)
		}
	}

	c.log.Info(module, "documents submitted", map[string]interface{}{
		"files":        len(files),
		"succeeded":    result.Succeeded(),
		"total_chunks": result.TotalChunks,
	})
	return result
}

func (c *Controller) uploadOne(ctx context.Context, file models.File) models.UploadOutcome {
	outcome := models.UploadOutcome{Name: file.Name}

	if err := c.limiter.Wait(ctx); err != nil {
		outcome.Err = fmt.Errorf("waiting to upload: %w", err)
		return outcome
	}

	chunks, err := c.backend.UploadDocument(ctx, file.Name, file.Bytes)
	if err != nil {
		c.log.Warn(module, "upload failed", map[string]interface{}{"name": file.Name, "error": err.Error()})
		outcome.Err = err
		return outcome
	}

	c.registry.Put(models.DocumentEntry{
		Name:       file.Name,
		ChunkCount: chunks,
		Status:     models.StatusProcessed,
		IngestedAt: c.now(),
		Pages:      file.Pages,
	})
	outcome.Chunks = chunks
	return outcome
}

// SubmitQuestion records the question and its answer. It is rejected with
// ErrBusy, without touching the transcript, while another question is being
// answered. On success both turns have been appended when it returns.
func (c *Controller) SubmitQuestion(ctx context.Context, text string, onProgress stream.ProgressFunc) (models.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return models.Turn{}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return models.Turn{}, ErrBusy
	}
	c.busy = true
	topK, streaming := c.topK, c.streaming
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	c.conversation.Append(conversation.NewTurn(models.RoleUser, text))

	var turn models.Turn
	if streaming {
		turn = c.askStreaming(ctx, text, topK, onProgress)
	} else {
		turn = c.askSync(ctx, text, topK)
	}

	c.conversation.Append(turn)
	return turn, nil
}

func (c *Controller) askStreaming(ctx context.Context, text string, topK int, onProgress stream.ProgressFunc) models.Turn {
	turn := conversation.NewTurn(models.RoleAssistant, "")

	result, err := c.aggregator.BeginQuery(ctx, text, topK, onProgress)
	if err != nil {
		// busy guards the aggregator, so this only happens if that invariant breaks
		c.log.Error(module, "aggregator refused query", map[string]interface{}{"error": err.Error()})
		turn.Content = gateway.FallbackMessage
		turn.Incomplete = true
		return turn
	}

	turn.Content = result.Content
	turn.Incomplete = result.Incomplete
	return turn
}

func (c *Controller) askSync(ctx context.Context, text string, topK int) models.Turn {
	turn := conversation.NewTurn(models.RoleAssistant, "")

	answer, sources, err := c.backend.Query(ctx, text, topK)
	if err != nil {
		c.log.Warn(module, "query failed", map[string]interface{}{"error": err.Error()})
		turn.Content = gateway.FallbackMessage
		if kind, ok := gateway.KindOf(err); ok && kind == gateway.ConnectionFailed {
			turn.Content = gateway.ConnectionFallbackMessage
		}
		turn.Incomplete = true
		return turn
	}

	turn.Content = answer
	turn.Sources = sources
	return turn
}

// ClearConversation resets the transcript to a single greeting. Documents and
// settings are kept.
func (c *Controller) ClearConversation() {
	c.conversation.ReplaceAll([]models.Turn{conversation.NewTurn(models.RoleAssistant, conversation.ClearGreeting)})
	c.log.Info(module, "conversation cleared", nil)
}

func (c *Controller) SetTopK(n int) error {
	if n < MinTopK || n > MaxTopK {
		return ErrInvalidTopK
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topK = n
	return nil
}

func (c *Controller) TopK() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topK
}

func (c *Controller) SetStreaming(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = enabled
}

func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// RefreshStatus probes the backend. Failures show up as disconnected with a
// zero document count.
func (c *Controller) RefreshStatus(ctx context.Context) models.StatusSnapshot {
	snapshot := models.StatusSnapshot{CheckedAt: c.now()}

	snapshot.Connected = c.backend.HealthCheck(ctx)
	if snapshot.Connected {
		if count, ok := c.backend.GetStatus(ctx); ok {
			snapshot.DocumentCount = count
		}
	}
	return snapshot
}

func (c *Controller) Transcript() []models.Turn {
	return c.conversation.Snapshot()
}

func (c *Controller) Documents() []models.DocumentEntry {
	return c.registry.Entries()
}

func (c *Controller) TotalChunks() int {
	return c.registry.TotalChunks()
}

func (c *Controller) DocumentCount() int {
	return c.registry.Count()
}

// ActiveQuery exposes the answer being streamed, for polling presenters.
func (c *Controller) ActiveQuery() (stream.QuerySession, bool) {
	return c.aggregator.Active()
}
