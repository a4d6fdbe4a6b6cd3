package mq

import (
	"fmt"
	"github.com/rs/zerolog"
	"regexp"
	"strings"
)

type TopicManager struct {
	BaseTopic string
	logger    zerolog.Logger
}

func NewTopicManager(baseTopic string, logger zerolog.Logger) *TopicManager {
	return &TopicManager{
		BaseTopic: strings.TrimSuffix(baseTopic, "/"),
		logger:    logger,
	}
}

const (
	RadioRxTopicTemplate     = "%s/v1/radio/+/rx"
	RadioTxTopicTemplate     = "%s/v1/radio/+/tx"
	PmuSamplesTopicTemplate  = "%s/v1/pmu/+/samples"
	PmuCompleteTopicTemplate = "%s/v1/pmu/+/complete"
	RequestTopicTemplate     = "%s/v1/requests/+"
	ConfirmTopicTemplate     = "%s/v1/confirms/+"
	ResultTopicTemplate      = "%s/v1/results/+/+"
	EventTopicTemplate       = "%s/v1/events/+/+"
)

// Subscription patterns

func (m *TopicManager) GetRadioRxTopic() string {
	return fmt.Sprintf(RadioRxTopicTemplate, m.BaseTopic)
}

func (m *TopicManager) GetPmuSamplesTopic() string {
	return fmt.Sprintf(PmuSamplesTopicTemplate, m.BaseTopic)
}

func (m *TopicManager) GetPmuCompleteTopic() string {
	return fmt.Sprintf(PmuCompleteTopicTemplate, m.BaseTopic)
}

func (m *TopicManager) GetRequestTopic() string {
	return fmt.Sprintf(RequestTopicTemplate, m.BaseTopic)
}

// Concrete topics

func (m *TopicManager) RadioTxTopic(peer string) string {
	return m.fill(RadioTxTopicTemplate, peer)
}

func (m *TopicManager) ConfirmTopic(primitive string) string {
	return m.fill(ConfirmTopicTemplate, strings.ToLower(primitive))
}

func (m *TopicManager) ResultTopic(peer, origin string) string {
	return m.fill(ResultTopicTemplate, peer, strings.ToLower(origin))
}

func (m *TopicManager) EventTopic(table, operation string) string {
	return m.fill(EventTopicTemplate, table, strings.ToLower(operation))
}

// fill replaces the wildcards of template in order.
func (m *TopicManager) fill(template string, params ...string) string {
	topic := fmt.Sprintf(template, m.BaseTopic)
	for _, param := range params {
		topic = strings.Replace(topic, "+", param, 1)
	}
	return topic
}

func (m *TopicManager) buildTopicRegex(template string) *regexp.Regexp {
	parts := strings.Split(template, "+")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(strings.ReplaceAll(part, "%s", m.BaseTopic))
	}
	pattern := "^" + strings.Join(parts, "([^/]+)") + "$"

	return regexp.MustCompile(pattern)
}

// ExtractParams returns the values matched by each wildcard of template.
func (m *TopicManager) ExtractParams(topic, template string) ([]string, error) {
	regex := m.buildTopicRegex(template)
	matches := regex.FindStringSubmatch(topic)

	if len(matches) < 2 {
		return nil, fmt.Errorf("topic %s does not match %s", topic, fmt.Sprintf(template, m.BaseTopic))
	}

	return matches[1:], nil
}

func (m *TopicManager) ExtractIdFromTopic(topic, template string) (string, error) {
	params, err := m.ExtractParams(topic, template)
	if err != nil {
		return "", err
	}
	return params[0], nil
}

func (m *TopicManager) ExtractRadioPeer(topic string) (string, error) {
	return m.ExtractIdFromTopic(topic, RadioRxTopicTemplate)
}

func (m *TopicManager) ExtractRequestKind(topic string) (string, error) {
	return m.ExtractIdFromTopic(topic, RequestTopicTemplate)
}

func (m *TopicManager) GetBaseTopic() string {
	return m.BaseTopic
}
