package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-membus/errors"
	"github.com/infigaming-com/go-membus/pubsub"
)

const (
	DedupeKeyHeader = "X-MEMBUS-DEDUPE-KEY"
	attributePrefix = "X-MEMBUS-ATTR-"
)

// DebugHandler exposes bus stats and a JSON publish endpoint over HTTP.
type DebugHandler struct {
	lg     *zap.Logger
	client *pubsub.Client
	topics []string

	mu         sync.RWMutex
	publishers map[string]*pubsub.Publisher[json.RawMessage]
}

type DebugOption func(*DebugHandler)

func WithDebugLogger(lg *zap.Logger) DebugOption {
	return func(h *DebugHandler) {
		h.lg = lg
	}
}

// WithPublishTopics lists the topics the publish endpoint accepts. The handler
// owns the publisher of each of them.
func WithPublishTopics(topics ...string) DebugOption {
	return func(h *DebugHandler) {
		h.topics = append(h.topics, topics...)
	}
}

func NewDebugHandler(client *pubsub.Client, opts ...DebugOption) (*DebugHandler, error) {
	h := &DebugHandler{
		lg:         zap.L(),
		client:     client,
		publishers: map[string]*pubsub.Publisher[json.RawMessage]{},
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, topic := range h.topics {
		pub, err := pubsub.NewPublisher(client, pubsub.Topic[json.RawMessage]{Name: topic})
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("publisher for %q: %w", topic, err)
		}
		h.publishers[topic] = pub
	}
	return h, nil
}

func (h *DebugHandler) Register(r gin.IRouter) {
	g := r.Group("/debug/pubsub")
	g.GET("", h.stats)
	g.POST("/topics/:topic", h.publish)
}

// Close releases the handler's publishers.
func (h *DebugHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, pub := range h.publishers {
		_ = pub.Close()
		delete(h.publishers, name)
	}
}

func (h *DebugHandler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.client.Stats())
}

func (h *DebugHandler) publish(c *gin.Context) {
	topic := c.Param("topic")
	h.mu.RLock()
	pub, ok := h.publishers[topic]
	h.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("topic %q is not published here", topic)})
		return
	}

	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "body must be a JSON document"})
		return
	}

	var opts []pubsub.PublishOption
	if key := c.GetHeader(DedupeKeyHeader); key != "" {
		opts = append(opts, pubsub.WithDeduplicationKey(key))
	}
	if attrs := attributesFrom(c.Request.Header); len(attrs) > 0 {
		opts = append(opts, pubsub.WithAttributes(attrs))
	}

	id, err := pub.Publish(c.Request.Context(), json.RawMessage(body), opts...)
	if err != nil {
		h.lg.Warn("debug publish failed", zap.String("topic", topic), zap.Error(err))
		c.JSON(statusOf(err), gin.H{"code": errors.CodeOf(err), "message": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_id": id})
}

func attributesFrom(header http.Header) map[string]string {
	prefix := http.CanonicalHeaderKey(attributePrefix)
	attrs := map[string]string{}
	for name, values := range header {
		if key, ok := strings.CutPrefix(name, prefix); ok && key != "" && len(values) > 0 {
			attrs[strings.ToLower(key)] = values[0]
		}
	}
	return attrs
}

func statusOf(err error) int {
	switch {
	case stderrors.Is(err, pubsub.ErrShutdown), stderrors.Is(err, pubsub.ErrPublisherClosed):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, pubsub.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
