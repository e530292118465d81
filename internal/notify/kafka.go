package notify

import (
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

var _ Notifier = (*KafkaNotifier)(nil)

// KafkaNotifier produces events to a Kafka topic, keyed by case so all
// events for one case land on the same partition in order.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaNotifier(brokers, topic string) (*KafkaNotifier, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, err
	}

	n := &KafkaNotifier{producer: producer, topic: topic}

	// Drain delivery reports; failed deliveries are logged and dropped.
	go func() {
		for e := range producer.Events() {
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				logrus.Warnf("progress event delivery failed: %v", m.TopicPartition.Error)
			}
		}
	}()

	return n, nil
}

func (k *KafkaNotifier) Emit(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.Warnf("progress event marshal failed for document %s: %v", event.DocumentID, err)
		return
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.CaseID),
		Value:          payload,
	}, nil)
	if err != nil {
		logrus.Warnf("progress event produce failed for document %s: %v", event.DocumentID, err)
	}
}

func (k *KafkaNotifier) Close() {
	k.producer.Flush(2000)
	k.producer.Close()
}
