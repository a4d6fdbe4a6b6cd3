package mq

import (
	"context"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"regexp"
	"sync"
	"time"
)

type TopicHandler interface {
	Process(ctx context.Context, msg mqtt.Message) error
}

type RouterImpl struct {
	logger   zerolog.Logger
	handlers map[string]TopicHandler
	patterns map[string]*regexp.Regexp
	order    []string
	mu       sync.RWMutex
}

func NewRouter(logger zerolog.Logger) *RouterImpl {
	return &RouterImpl{
		logger:   logger.With().Str("component", "router").Logger(),
		handlers: make(map[string]TopicHandler),
		patterns: make(map[string]*regexp.Regexp),
	}
}

func (r *RouterImpl) RegisterMultipleTopics(topicPatterns []string, handler TopicHandler) {
	for _, topicPattern := range topicPatterns {
		r.RegisterHandler(topicPattern, handler)
	}
}

func (r *RouterImpl) RegisterHandler(topicPattern string, handler TopicHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[topicPattern]; !exists {
		r.order = append(r.order, topicPattern)
	}
	r.handlers[topicPattern] = handler
	r.patterns[topicPattern] = regexp.MustCompile(r.topicToRegex(topicPattern))

	r.logger.Info().
		Str("topic_pattern", topicPattern).
		Msg("Handler registered")
}

// Patterns returns the registered topic patterns in registration order.
func (r *RouterImpl) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Route hands msg to the first registered handler whose pattern matches.
func (r *RouterImpl) Route(ctx context.Context, topic string, msg mqtt.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pattern := range r.order {
		if r.patterns[pattern].MatchString(topic) {
			return r.handlers[pattern].Process(ctx, msg)
		}
	}

	return fmt.Errorf("no handler found for topic '%s'", topic)
}

// HandleMessage is the paho callback for every routed subscription.
func (r *RouterImpl) HandleMessage(client mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.Route(ctx, msg.Topic(), msg); err != nil {
		r.logger.Error().Err(err).
			Str("topic", msg.Topic()).
			Msg("Could not process message")
	}
}

func (r *RouterImpl) topicToRegex(topic string) string {
	pattern := topic
	pattern = regexp.QuoteMeta(pattern)
	pattern = "^" + pattern + "$"
	pattern = regexp.MustCompile(`\\\+`).ReplaceAllString(pattern, `[^/]+`)
	pattern = regexp.MustCompile(`#`).ReplaceAllString(pattern, `.*`)

	return pattern
}
