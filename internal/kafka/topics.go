package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"campus-events/internal/logger"

	"github.com/segmentio/kafka-go"
)

type Topics struct {
	EventStatus   string
	Registrations string
	Feedback      string
	Notifications string
}

// NewTopics names the topics under prefix, e.g. "campus.registrations".
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = "campus"
	}
	return Topics{
		EventStatus:   prefix + ".events.status",
		Registrations: prefix + ".registrations",
		Feedback:      prefix + ".feedback",
		Notifications: prefix + ".notifications",
	}
}

func (t Topics) All() []string {
	return []string{t.EventStatus, t.Registrations, t.Feedback, t.Notifications}
}

// EnsureTopicsExist creates missing topics through the cluster controller.
// A topic that fails to create is logged and the rest are still attempted.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	var failed int
	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("CREATE", topic, "topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
		default:
			failed++
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d topics could not be created", failed, len(topics))
	}
	return nil
}
