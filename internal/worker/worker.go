package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/dago-cel/internal/config"
	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/aescanero/dago-cel/internal/eval/celerr"
	"github.com/aescanero/dago-cel/internal/output"
	"github.com/aescanero/dago-cel/internal/rules"
	"github.com/aescanero/dago-cel/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// readBackoff is the pause after a failed stream read
const readBackoff = time.Second

// Stream is the subset of *redis.Client the worker uses
type Stream interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// ContextLoader loads stored variables by name
type ContextLoader interface {
	Load(ctx context.Context, name string) (map[string]interface{}, error)
}

// Worker consumes evaluation requests from a Redis stream and publishes
// their results
type Worker struct {
	id            string
	stream        Stream
	evaluator     *cel.Evaluator
	router        *rules.Router
	contexts      ContextLoader
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	streamKey     string
	consumerGroup string
	resultStream  string
	blockTime     time.Duration
}

// NewWorker creates a new worker. contexts may be nil, in which case
// requests naming a context_key fail.
func NewWorker(
	cfg *config.Config,
	stream Stream,
	evaluator *cel.Evaluator,
	router *rules.Router,
	contexts ContextLoader,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		stream:        stream,
		evaluator:     evaluator,
		router:        router,
		contexts:      contexts,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
		blockTime:     cfg.BlockTime,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting evaluation worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processWork()
	}()

	w.logger.Info("evaluation worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the message in flight
func (w *Worker) Stop() error {
	w.logger.Info("stopping evaluation worker", zap.String("worker_id", w.id))

	w.cancel()
	w.wg.Wait()

	w.logger.Info("evaluation worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.stream.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads requests until the worker is stopped
func (w *Worker) processWork() {
	w.logger.Info("starting work processing loop")

	for {
		if w.ctx.Err() != nil {
			w.logger.Info("work processing loop stopped")
			return
		}

		streams, err := w.stream.XReadGroup(w.ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: w.id,
			Streams:  []string{w.streamKey, ">"},
			Count:    1,
			Block:    w.blockTime,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to read from stream", zap.Error(err))
			select {
			case <-w.ctx.Done():
			case <-time.After(readBackoff):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				w.handleMessage(message)
			}
		}
	}
}

// handleMessage evaluates one request and always acknowledges it. A message
// being handled when the worker stops is still finished.
func (w *Worker) handleMessage(message redis.XMessage) {
	ctx := context.WithoutCancel(w.ctx)
	messageID := message.ID
	w.logger.Info("processing evaluation request",
		zap.String("message_id", messageID),
	)

	request, err := ParseRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse evaluation request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(ctx, &Result{
			ID:        messageID,
			Error:     errorInfo(err),
			WorkerID:  w.id,
			Timestamp: time.Now().UTC(),
		})
		w.acknowledgeMessage(ctx, messageID)
		return
	}

	result := w.Handle(ctx, request)
	if err := w.publish(ctx, w.resultStream, result); err != nil {
		w.logger.Error("failed to publish result",
			zap.String("message_id", messageID),
			zap.String("request_id", request.ID),
			zap.Error(err),
		)
	}
	if result.Error != nil {
		w.publishError(ctx, result)
	}

	w.acknowledgeMessage(ctx, messageID)
}

// Request is an evaluation request read from the stream's "data" field.
// Exactly one of Expression and Rules is set.
type Request struct {
	ID         string                 `json:"id"`
	Expression string                 `json:"expression,omitempty"`
	Rules      *rules.RuleSet         `json:"rules,omitempty"`
	Context    map[string]interface{} `json:"-"`
	ContextKey string                 `json:"context_key,omitempty"`
	Mode       string                 `json:"mode,omitempty"`
}

// ParseRequest decodes a stream message. Requests without an id get a
// random one.
func ParseRequest(values map[string]interface{}) (*Request, error) {
	data, ok := values["data"].(string)
	if !ok {
		return nil, celerr.New(celerr.KindInvalidArgument, "missing or invalid 'data' field")
	}

	var wire struct {
		Request
		Context json.RawMessage `json:"context,omitempty"`
	}
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return nil, celerr.Wrap(celerr.KindInvalidArgument, err, "failed to unmarshal evaluation request: %v", err)
	}

	request := wire.Request
	if len(wire.Context) > 0 && string(wire.Context) != "null" {
		vars, err := store.Decode(wire.Context)
		if err != nil {
			return nil, celerr.Wrap(celerr.KindInvalidArgument, err, "invalid 'context' field: %v", err)
		}
		request.Context = vars
	}

	switch {
	case request.Expression == "" && request.Rules == nil:
		return nil, celerr.New(celerr.KindInvalidArgument, "request needs an 'expression' or 'rules'")
	case request.Expression != "" && request.Rules != nil:
		return nil, celerr.New(celerr.KindInvalidArgument, "request must not set both 'expression' and 'rules'")
	}
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	return &request, nil
}

// Result is published for every request
type Result struct {
	ID         string          `json:"id"`
	Expression string          `json:"expression,omitempty"`
	Result     interface{}     `json:"result"`
	Type       string          `json:"type,omitempty"`
	Decision   *rules.Decision `json:"decision,omitempty"`
	Error      *ErrorInfo      `json:"error,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	DurationMS float64         `json:"duration_ms"`
	WorkerID   string          `json:"worker_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ErrorInfo describes a failed request. Kind is an error kind name such as
// TypeMismatch, or RequestError for failures outside evaluation.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorInfo(err error) *ErrorInfo {
	kind := "RequestError"
	if k := celerr.KindOf(err); k != 0 {
		kind = k.String()
	}
	return &ErrorInfo{Kind: kind, Message: err.Error()}
}

// Handle evaluates a request. Failures are reported in the result.
func (w *Worker) Handle(ctx context.Context, request *Request) *Result {
	start := time.Now()
	result := &Result{
		ID:         request.ID,
		Expression: request.Expression,
		Mode:       w.evaluator.Mode().String(),
		WorkerID:   w.id,
	}
	if request.Mode != "" {
		result.Mode = request.Mode
	}

	finish := func(err error) *Result {
		if err != nil {
			result.Error = errorInfo(err)
			w.logger.Warn("evaluation request failed",
				zap.String("request_id", request.ID),
				zap.String("kind", result.Error.Kind),
				zap.Error(err),
			)
		}
		result.DurationMS = float64(time.Since(start).Microseconds()) / 1000
		result.Timestamp = time.Now().UTC()
		return result
	}

	vars, err := w.variables(ctx, request)
	if err != nil {
		return finish(err)
	}

	if request.Rules != nil {
		set := *request.Rules
		if set.Mode == "" {
			set.Mode = request.Mode
		}
		decision, err := w.router.Decide(ctx, &set, vars)
		if err != nil {
			return finish(err)
		}
		result.Decision = decision
		return finish(nil)
	}

	var opts []cel.Option
	if request.Mode != "" {
		opts = append(opts, cel.WithMode(cel.EvaluationMode(request.Mode)))
	}
	value, err := w.evaluator.Evaluate(ctx, request.Expression, vars, opts...)
	if err != nil {
		return finish(err)
	}
	result.Result = output.Normalize(value)
	result.Type = output.TypeName(value)
	return finish(nil)
}

// variables merges the inline context over the stored one
func (w *Worker) variables(ctx context.Context, request *Request) (map[string]interface{}, error) {
	if request.ContextKey == "" {
		return request.Context, nil
	}
	if w.contexts == nil {
		return nil, fmt.Errorf("context_key %q given but no context store is configured", request.ContextKey)
	}

	vars, err := w.contexts.Load(ctx, request.ContextKey)
	if err != nil {
		return nil, err
	}
	for name, v := range request.Context {
		vars[name] = v
	}
	return vars, nil
}

// publish appends a result to a stream
func (w *Worker) publish(ctx context.Context, stream string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = w.stream.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	w.logger.Debug("published result",
		zap.String("stream", stream),
		zap.String("request_id", result.ID),
	)
	return nil
}

// publishError copies a failed result to the error stream
func (w *Worker) publishError(ctx context.Context, result *Result) {
	if err := w.publish(ctx, w.resultStream+".errors", result); err != nil {
		w.logger.Error("failed to publish error event", zap.Error(err))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(ctx context.Context, messageID string) {
	err := w.stream.XAck(ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
