// Command rowconsumer turns row batches from Kafka into reports. Each batch
// is analyzed and its report produced in the same transaction that commits
// the batch offset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"orderstats/internal/config"
	"orderstats/internal/logging"
	"orderstats/internal/metrics"
	"orderstats/internal/model"
	"orderstats/internal/service"
	"orderstats/internal/source"
)

// Batch is one message on the rows topic.
type Batch struct {
	Dialect  string         `json:"dialect"`
	Strategy string         `json:"strategy"`
	Days     []string       `json:"days"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Compare  bool           `json:"compare"`
	Rows     []model.RawRow `json:"rows"`
}

// decodeBatch parses a message value into a table and its request.
func decodeBatch(value []byte) (*source.Table, service.Request, error) {
	var b Batch
	if err := json.Unmarshal(value, &b); err != nil {
		return nil, service.Request{}, fmt.Errorf("%w: %w", source.ErrMalformed, err)
	}
	if len(b.Rows) == 0 {
		return nil, service.Request{}, source.ErrEmpty
	}
	req, err := service.ParseRequest(b.Dialect, b.Strategy, b.Days, b.From, b.To, b.Compare)
	if err != nil {
		return nil, service.Request{}, err
	}
	return source.FromRows(b.Rows), req, nil
}

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.FileEnv+")")
	txID := flag.String("tx-id", "rowconsumer-1", "transactional id of the report producer")
	metricsAddr := flag.String("metrics-addr", ":9090", "address serving /metrics and /healthz; empty disables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("rowconsumer: %v", err)
	}
	if cfg.Kafka.Brokers == "" {
		log.Fatalf("rowconsumer: kafka brokers not configured (%s_KAFKA_BROKERS)", config.EnvPrefix)
	}
	if err := run(cfg, *txID, *metricsAddr); err != nil {
		log.Fatalf("rowconsumer failed: %v", err)
	}
}

func run(cfg *config.Config, txID, metricsAddr string) error {
	logger := logging.Setup(cfg.Logging)
	mreg := metrics.NewRegistry()

	// Reports leave through the transactional producer below, not a sink.
	analyzerCfg := *cfg
	analyzerCfg.Kafka.Brokers = ""
	analyzer, closeFn, err := service.FromConfig(&analyzerCfg, mreg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mreg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server", "err", err)
			}
		}()
	}

	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Brokers,
		"enable.idempotence": true,
		"acks":               "all",
		"transactional.id":   txID,
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer p.Close()

	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Brokers,
		"group.id":           cfg.Kafka.GroupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	defer c.Close()

	if err := c.SubscribeTopics([]string{cfg.Kafka.RowsTopic}, nil); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.InitTransactions(ctx); err != nil {
		return fmt.Errorf("init tx: %w", err)
	}
	logger.Info("rowconsumer started",
		"brokers", cfg.Kafka.Brokers,
		"in", cfg.Kafka.RowsTopic,
		"out", cfg.Kafka.ReportTopic,
		"group", cfg.Kafka.GroupID,
	)

	w := &worker{
		analyzer: analyzer,
		producer: p,
		consumer: c,
		topic:    cfg.Kafka.ReportTopic,
		log:      logger,
	}
	for ctx.Err() == nil {
		msg, err := c.ReadMessage(time.Second)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.IsTimeout() {
				continue
			}
			logger.Warn("read message", "err", err)
			continue
		}
		if err := w.handle(ctx, msg); err != nil {
			logger.Error("batch aborted", "partition", msg.TopicPartition.Partition,
				"offset", msg.TopicPartition.Offset.String(), "err", err)
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.IsFatal() {
				return err
			}
		}
	}
	logger.Info("rowconsumer stopped")
	return nil
}

type worker struct {
	analyzer *service.Analyzer
	producer *ck.Producer
	consumer *ck.Consumer
	topic    string
	log      *slog.Logger
}

// handle analyzes one batch inside a transaction. Batches rejected by the
// analyzer as bad input are logged and their offset committed without a
// report, so a poison message does not stall the partition.
func (w *worker) handle(ctx context.Context, msg *ck.Message) error {
	if err := w.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := w.produceReport(ctx, msg); err != nil {
		if !service.IsClientError(err) {
			_ = w.producer.AbortTransaction(ctx)
			w.rewind(msg)
			return err
		}
		w.log.WarnContext(ctx, "batch rejected", "offset", msg.TopicPartition.Offset.String(), "err", err)
	}

	next := msg.TopicPartition
	next.Offset++
	meta, err := w.consumer.GetConsumerGroupMetadata()
	if err != nil {
		_ = w.producer.AbortTransaction(ctx)
		w.rewind(msg)
		return fmt.Errorf("group metadata: %w", err)
	}
	if err := w.producer.SendOffsetsToTransaction(ctx, []ck.TopicPartition{next}, meta); err != nil {
		_ = w.producer.AbortTransaction(ctx)
		w.rewind(msg)
		return fmt.Errorf("send offsets: %w", err)
	}
	if err := w.producer.CommitTransaction(ctx); err != nil {
		_ = w.producer.AbortTransaction(ctx)
		w.rewind(msg)
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (w *worker) produceReport(ctx context.Context, msg *ck.Message) error {
	t, req, err := decodeBatch(msg.Value)
	if err != nil {
		return err
	}
	res, err := w.analyzer.Analyze(ctx, t, msg.Value, req)
	if err != nil {
		return err
	}
	val, err := json.Marshal(&res.Payload)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := msg.Key
	if len(key) == 0 {
		key = []byte(res.Payload.ID)
	}
	return w.producer.Produce(&ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &w.topic, Partition: ck.PartitionAny},
		Key:            key,
		Value:          val,
		Headers:        []ck.Header{{Key: "dialect", Value: []byte(res.Payload.Dialect)}},
	}, nil)
}

// rewind seeks back so an aborted batch is read again.
func (w *worker) rewind(msg *ck.Message) {
	if err := w.consumer.Seek(msg.TopicPartition, 0); err != nil {
		w.log.Warn("seek", "err", err)
	}
}
