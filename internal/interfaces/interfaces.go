package interfaces

import (
	"context"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"time"
)

type IMqClient interface {
	Publish(topic string, payload []byte) error
	PublishJson(topic string, data interface{}) error
	PublishRetained(topic string, data interface{}) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Disconnect(ctx context.Context)
	Connect(ctx context.Context) error
	IsConnected() bool
}

type ITableListener interface {
	GetTableName() string
	HandleChange(ctx context.Context, event *TableChangeEvent) error
	GetChannelName() string
}

type IListenerManager interface {
	RegisterListener(listener ITableListener) error
	Initialize() error
	Start()
	Stop()
}

type OperationType string

const (
	InsertOperation OperationType = "INSERT"
	UpdateOperation OperationType = "UPDATE"
	DeleteOperation OperationType = "DELETE"
)

type TableChangeEvent struct {
	Operation OperationType          `json:"operation"`
	Table     string                 `json:"table"`
	OldData   map[string]interface{} `json:"old_data,omitempty"`
	NewData   map[string]interface{} `json:"new_data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
