package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
)

// dlqMessage собирает сообщение в том виде, в каком его пишет outbox worker
// через OutboxTopicPublisher.
func dlqMessage(t *testing.T, partition int32, offset int64, orderID string) *sarama.ConsumerMessage {
	t.Helper()

	original := domain.OutboxMessage{
		ID:            "outbox-" + orderID,
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     "order.confirmed",
		Payload:       []byte(`{"order_id":"` + orderID + `","total":"22.00"}`),
	}
	dlq, err := outbox.NewDeadLetter(original, errors.New("broker unavailable"), time.Now()).Message()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(map[string]any{
		"id":             "outbox-" + orderID,
		"aggregate_type": "order",
		"aggregate_id":   orderID,
		"event_type":     "order.confirmed",
		"payload":        json.RawMessage(dlq.Payload),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Partition: partition, Offset: offset, Value: raw}
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 || brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestExtractReplayEvent(t *testing.T) {
	event, err := extractReplayEvent(dlqMessage(t, 0, 0, "order-1"))
	if err != nil {
		t.Fatalf("extractReplayEvent failed: %v", err)
	}
	if event.ID != "outbox-order-1" || event.AggregateID != "order-1" || event.EventType != "order.confirmed" {
		t.Fatalf("unexpected event: %+v", event)
	}

	var payload map[string]string
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("payload must be the original JSON: %v", err)
	}
	if payload["total"] != "22.00" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestExtractReplayEvent_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":         `not-json`,
		"no payload":       `{"id":"x"}`,
		"payload not obj":  `{"id":"x","payload":"not-an-object"}`,
		"no nested events": `{"id":"x","payload":{"outbox_id":"x","event_type":"order.confirmed"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := extractReplayEvent(&sarama.ConsumerMessage{Value: []byte(raw)}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Fatalf("unexpected first non-empty value: %q", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestReadConfig_FromFlags(t *testing.T) {
	cfg, err := readConfig([]string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-limit=10",
		"-execute=true",
		"-from-newest=true",
		"-idle-timeout=3s",
	}, noEnv)
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}
	if len(cfg.brokers) != 2 || cfg.limit != 10 || !cfg.execute || !cfg.fromNewest || cfg.idleTimeout != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.sourceTopic != kafka.TopicDeadLetterQueue || cfg.targetTopic != kafka.TopicOrderEvents {
		t.Fatalf("unexpected default topics: %s -> %s", cfg.sourceTopic, cfg.targetTopic)
	}
}

func TestReadConfig_BrokersFromEnv(t *testing.T) {
	cfg, err := readConfig(nil, func(key string) string {
		if key == "KAFKA_BROKERS" {
			return "env-broker:9092"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}
	if len(cfg.brokers) != 1 || cfg.brokers[0] != "env-broker:9092" {
		t.Fatalf("unexpected brokers %v", cfg.brokers)
	}
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{args: []string{"-brokers="}, want: "kafka brokers are required"},
		{args: []string{"-brokers=b:9092", "-source-topic="}, want: "source-topic is required"},
		{args: []string{"-brokers=b:9092", "-target-topic="}, want: "target-topic is required"},
		{args: []string{"-brokers=b:9092", "-target-topic=" + kafka.TopicDeadLetterQueue}, want: "must differ"},
		{args: []string{"-brokers=b:9092", "-limit=0"}, want: "limit must be > 0"},
		{args: []string{"-brokers=b:9092", "-idle-timeout=0s"}, want: "idle-timeout must be > 0"},
	}
	for _, tc := range cases {
		_, err := readConfig(tc.args, noEnv)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("args %v: expected %q, got %v", tc.args, tc.want, err)
		}
	}
}

func TestKafkaReplayPublisher(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope outboxEnvelope
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.AggregateID != "order-1" || envelope.EventType != "order.confirmed" {
			return fmt.Errorf("unexpected envelope %+v", envelope)
		}
		if !strings.Contains(string(envelope.Payload), `"total":"22.00"`) {
			return fmt.Errorf("original payload lost: %s", envelope.Payload)
		}
		return nil
	})

	publisher := newKafkaReplayPublisher(kafka.NewProducerFromSync(mockProducer, log.WithField("test", "dlq")), kafka.TopicOrderEvents)
	if publisher.Topic() != kafka.TopicOrderEvents {
		t.Fatalf("unexpected topic %s", publisher.Topic())
	}

	event, err := extractReplayEvent(dlqMessage(t, 0, 0, "order-1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := publisher.Publish(event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestProcessPartition_DryRun(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{dlqMessage(t, 0, 0, "order-1")}),
	}}
	cfg := config{sourceTopic: "dlq", targetTopic: "events", idleTimeout: 20 * time.Millisecond}

	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 1 || stats.replayed != 1 || stats.skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].offset != 0 {
		t.Fatalf("unexpected consume calls: %+v", consumer.calls)
	}
}

func TestProcessPartition_ExecuteSkipsBrokenMessages(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 3}}}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{
			dlqMessage(t, 0, 0, "order-1"),
			{Partition: 0, Offset: 1, Value: []byte(`{"id":"x","payload":"not-an-object"}`)},
			dlqMessage(t, 0, 2, "order-2"),
		}),
	}}
	publisher := &stubPublisher{}
	cfg := config{sourceTopic: "dlq", targetTopic: "events", execute: true, idleTimeout: 20 * time.Millisecond}

	stats, err := processPartition(context.Background(), consumer, client, publisher, cfg, 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 3 || stats.replayed != 2 || stats.skipped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(publisher.events) != 2 || publisher.events[1].AggregateID != "order-2" {
		t.Fatalf("unexpected published events: %+v", publisher.events)
	}
}

func TestProcessPartition_FromNewest(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 2, newest: 10}}}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer(nil),
	}}
	cfg := config{sourceTopic: "dlq", targetTopic: "events", fromNewest: true, idleTimeout: 20 * time.Millisecond}

	if _, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 3); err != nil {
		t.Fatal(err)
	}
	if consumer.calls[0].offset != 7 {
		t.Fatalf("expected start offset 7, got %d", consumer.calls[0].offset)
	}
}

func TestProcessPartition_ErrorBranches(t *testing.T) {
	cfg := config{sourceTopic: "dlq", targetTopic: "events", execute: true, idleTimeout: 20 * time.Millisecond}

	clientOffsetErr := &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("offset")}}
	if _, err := processPartition(context.Background(), &stubPartitionConsumerSource{}, clientOffsetErr, &stubPublisher{}, cfg, 0, 1); err == nil {
		t.Fatal("expected offset error")
	}

	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumerErr := &stubPartitionConsumerSource{consumeErr: errors.New("consume")}
	if _, err := processPartition(context.Background(), consumerErr, client, &stubPublisher{}, cfg, 0, 1); err == nil {
		t.Fatal("expected consume error")
	}

	pcWithErr := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	pcWithErr.errors <- &sarama.ConsumerError{Err: errors.New("consumer boom")}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: pcWithErr}}
	if _, err := processPartition(context.Background(), consumer, client, &stubPublisher{}, cfg, 0, 1); err == nil {
		t.Fatal("expected consumer error branch")
	}

	consumer = &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{dlqMessage(t, 0, 0, "order-1")}),
	}}
	if _, err := processPartition(context.Background(), consumer, client, &stubPublisher{err: errors.New("send fail")}, cfg, 0, 1); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestProcessPartition_IdleTimeoutAndContext(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	cfg := config{sourceTopic: "dlq", targetTopic: "events", idleTimeout: 10 * time.Millisecond}

	idle := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: idle}}
	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 1)
	if err != nil {
		t.Fatalf("unexpected idle-timeout error: %v", err)
	}
	if stats.processed != 0 {
		t.Fatalf("expected processed=0, got %+v", stats)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canceled := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	consumer = &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: canceled}}
	if _, err := processPartition(ctx, consumer, client, nil, cfg, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRunReplay(t *testing.T) {
	cfg := config{sourceTopic: "dlq", targetTopic: "events", limit: 1, idleTimeout: 20 * time.Millisecond}

	if err := runReplay(context.Background(), cfg, nil, nil, nil); err == nil {
		t.Fatal("expected missing deps error")
	}

	client := &stubOffsetClient{
		partitions: []int32{2, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
			2: {oldest: 0, newest: 2},
		},
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{dlqMessage(t, 0, 0, "order-1")}),
		2: closedPartitionConsumer([]*sarama.ConsumerMessage{dlqMessage(t, 2, 0, "order-2")}),
	}}

	if err := runReplay(context.Background(), cfg, client, consumer, nil); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if len(consumer.calls) != 1 || consumer.calls[0].partition != 0 {
		t.Fatalf("expected only the first sorted partition due to limit=1, got %+v", consumer.calls)
	}

	executeCfg := cfg
	executeCfg.execute = true
	if err := runReplay(context.Background(), executeCfg, client, consumer, nil); err == nil {
		t.Fatal("expected execute mode to require publisher")
	}

	if err := runReplay(context.Background(), cfg, &stubOffsetClient{}, consumer, nil); err != nil {
		t.Fatalf("expected nil error for empty partitions, got %v", err)
	}

	failing := &stubOffsetClient{partitionsErr: errors.New("metadata")}
	if err := runReplay(context.Background(), cfg, failing, consumer, nil); err == nil {
		t.Fatal("expected partitions error")
	}
}

func TestRun_UsesDependencies(t *testing.T) {
	oldDeps := newReplayDependencies
	defer func() { newReplayDependencies = oldDeps }()

	cfg := config{sourceTopic: "dlq", targetTopic: "events", limit: 1, execute: true, idleTimeout: 20 * time.Millisecond}

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayPublisher, error) {
		return nil, nil, nil, errors.New("deps failed")
	}
	if err := run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "deps failed") {
		t.Fatalf("expected deps error, got %v", err)
	}

	client := &stubOffsetClient{
		partitions: []int32{0},
		offsets:    map[int32]offsetRange{0: {oldest: 0, newest: 2}},
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{dlqMessage(t, 0, 0, "order-1")}),
	}}
	publisher := &stubPublisher{}

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayPublisher, error) {
		return client, consumer, publisher, nil
	}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !client.closed || !consumer.closed || !publisher.closed {
		t.Fatalf("expected all deps to be closed: client=%v consumer=%v publisher=%v", client.closed, consumer.closed, publisher.closed)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one replayed event, got %d", len(publisher.events))
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("DLQ_TEST_FAIL_EXIT") == "1" {
		fail("boom")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "DLQ_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func noEnv(string) string { return "" }

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) *stubPartitionConsumer {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	errCh := make(chan *sarama.ConsumerError)
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	close(errCh)
	return &stubPartitionConsumer{messages: msgCh, errors: errCh}
}

type stubPublisher struct {
	err    error
	events []domain.OutboxMessage
	closed bool
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}
