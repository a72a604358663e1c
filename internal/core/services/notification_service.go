package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/metrics"

	"go.uber.org/zap"
)

// ============================================================
// Notifier - outbound push queue
// ============================================================

const (
	DefaultNotificationQueueSize = 256
	deliveryTimeout              = 10 * time.Second
)

// Notification is one queued delivery
type Notification struct {
	Tokens  []string
	Message PushMessage
}

// Notifier owns the outbound notification queue and its delivery worker.
// Callers never wait for delivery; only a full queue is reported.
type Notifier struct {
	provider PushProvider
	queue    chan Notification
	logger   *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// NewNotifier creates a new notifier
func NewNotifier(provider PushProvider, queueSize int, logger *zap.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultNotificationQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		provider: provider,
		queue:    make(chan Notification, queueSize),
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery worker
func (n *Notifier) Start() {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	if n.started {
		return
	}
	n.started = true
	go n.run()
}

// Stop delivers what is already queued and stops the worker
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stop)
		n.startMu.Lock()
		started := n.started
		n.startMu.Unlock()
		if started {
			<-n.done
		}
	})
}

// Enqueue places a notification on the queue without blocking
func (n *Notifier) Enqueue(tokens []string, msg PushMessage) error {
	live := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}

	select {
	case n.queue <- Notification{Tokens: live, Message: msg}:
		return nil
	default:
		metrics.NotificationsDropped.Inc()
		return domain.ErrNotificationQueueFull
	}
}

// Notify enqueues and logs a full queue; for workflows where delivery is best-effort
func (n *Notifier) Notify(tokens []string, msg PushMessage) {
	if err := n.Enqueue(tokens, msg); err != nil {
		n.logger.Warn("notification dropped", zap.String("title", msg.Title), zap.Error(err))
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case item := <-n.queue:
			n.deliver(item)
		case <-n.stop:
			for {
				select {
				case item := <-n.queue:
					n.deliver(item)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(item Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	start := time.Now()
	var err error
	if len(item.Tokens) == 1 {
		err = n.provider.Send(ctx, item.Tokens[0], item.Message)
	} else {
		err = n.provider.SendBulk(ctx, item.Tokens, item.Message)
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.NotificationDelivery.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("title", item.Message.Title),
			zap.Int("recipients", len(item.Tokens)),
			zap.Error(err))
	}
}

// ============================================================
// Expo push provider
// ============================================================

const (
	DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"
	expoBatchSize      = 100
)

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

// ExpoPushProvider delivers through the Expo push API
type ExpoPushProvider struct {
	endpoint    string
	accessToken string
	client      *http.Client
}

// NewExpoPushProvider creates a new Expo push provider
func NewExpoPushProvider(endpoint, accessToken string) *ExpoPushProvider {
	if endpoint == "" {
		endpoint = DefaultExpoPushURL
	}
	return &ExpoPushProvider{
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      &http.Client{Timeout: deliveryTimeout},
	}
}

func (p *ExpoPushProvider) Send(ctx context.Context, token string, msg PushMessage) error {
	return p.SendBulk(ctx, []string{token}, msg)
}

func (p *ExpoPushProvider) SendBulk(ctx context.Context, tokens []string, msg PushMessage) error {
	for start := 0; start < len(tokens); start += expoBatchSize {
		end := start + expoBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := p.post(ctx, tokens[start:end], msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *ExpoPushProvider) post(ctx context.Context, tokens []string, msg PushMessage) error {
	batch := make([]expoMessage, 0, len(tokens))
	for _, t := range tokens {
		batch = append(batch, expoMessage{To: t, Title: msg.Title, Body: msg.Body, Data: msg.Data, Sound: "default"})
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("expo push: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// LogPushProvider only logs; used when push delivery is disabled
type LogPushProvider struct {
	logger *zap.Logger
}

// NewLogPushProvider creates a new log push provider
func NewLogPushProvider(logger *zap.Logger) *LogPushProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPushProvider{logger: logger}
}

func (p *LogPushProvider) Send(ctx context.Context, token string, msg PushMessage) error {
	p.logger.Info("push (disabled)", zap.String("to", token), zap.String("title", msg.Title), zap.String("body", msg.Body))
	return nil
}

func (p *LogPushProvider) SendBulk(ctx context.Context, tokens []string, msg PushMessage) error {
	p.logger.Info("push (disabled)", zap.Int("recipients", len(tokens)), zap.String("title", msg.Title), zap.String("body", msg.Body))
	return nil
}
