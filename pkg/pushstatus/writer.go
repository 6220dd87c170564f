// Package pushstatus writes push job status updates back to the
// PushJobStatusTopic so external push-job drivers can observe progress
// without polling the controller directly.
package pushstatus

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/venice/pkg/log"
	"github.com/cuemby/venice/pkg/metrics"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	producerInitAttempts = 5
	producerInitBackoff  = time.Second
)

// Writer lazily initializes a kgo producer on first use and writes
// key/value records to the status topic on a best-effort basis: a
// delivery failure is logged and counted, never surfaced to the caller,
// since push-status reporting must never block a store version
// transition.
type Writer struct {
	brokers []string
	topic   string

	mu     sync.Mutex
	client *kgo.Client
}

// NewWriter returns a Writer that will lazily connect to brokers on first
// Write call.
func NewWriter(brokers []string, topic string) *Writer {
	return &Writer{brokers: brokers, topic: topic}
}

func (w *Writer) ensureClient() (*kgo.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		return w.client, nil
	}

	var lastErr error
	for attempt := 0; attempt < producerInitAttempts; attempt++ {
		cl, err := kgo.NewClient(kgo.SeedBrokers(w.brokers...))
		if err == nil {
			w.client = cl
			return cl, nil
		}
		lastErr = err
		log.Logger.Warn().Err(err).Int("attempt", attempt).Msg("push-status producer init failed, retrying")
		time.Sleep(producerInitBackoff)
	}
	return nil, lastErr
}

// Write fires a best-effort record at the status topic without waiting
// for delivery, which is tracked asynchronously via the
// venice_controller_push_status_writes_total metric. The first call
// creates the producer and, if that fails, retries up to
// producerInitAttempts times producerInitBackoff apart before dropping the write.
func (w *Writer) Write(key, value []byte) {
	cl, err := w.ensureClient()
	if err != nil {
		metrics.PushStatusWritesTotal.WithLabelValues("producer_unavailable").Inc()
		log.Logger.Error().Err(err).Msg("push-status producer permanently unavailable, dropping write")
		return
	}

	record := &kgo.Record{Topic: w.topic, Key: key, Value: value}
	cl.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			metrics.PushStatusWritesTotal.WithLabelValues("error").Inc()
			log.Logger.Warn().Err(err).Msg("push-status write failed")
			return
		}
		metrics.PushStatusWritesTotal.WithLabelValues("success").Inc()
	})
}

// Close releases the underlying producer, if one was created.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
	}
}
