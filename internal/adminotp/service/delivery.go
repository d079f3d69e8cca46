package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/adminotp/pkg/mailx"
)

var (
	ErrDeliveryQueueFull = errors.New("delivery queue full")
	ErrDeliveryStopped   = errors.New("delivery worker stopped")
)

// DeliveryError records a failed send. It is logged, never returned to the
// requester.
type DeliveryError struct {
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver otp to %s: %v", maskEmail(e.Destination), e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type DeliveryConfig struct {
	From        string
	SiteName    string
	Workers     int
	QueueSize   int
	SendTimeout time.Duration

	// CodeTTL is quoted in the message body.
	CodeTTL time.Duration
}

type delivery struct {
	destination string
	code        string
	logger      *slog.Logger
}

// DeliveryWorker sends codes from a bounded queue so a sign-in request never
// waits on the mail server.
type DeliveryWorker struct {
	Sender mailx.Sender
	Logger *slog.Logger

	cfg    DeliveryConfig
	queue  chan delivery
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// mu orders Dispatch against Stop: nothing is enqueued once the
	// workers may have drained the queue.
	mu      sync.RWMutex
	stopped bool
}

func NewDeliveryWorker(sender mailx.Sender, logger *slog.Logger, cfg DeliveryConfig) *DeliveryWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultOTPTTL
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "Admin console"
	}

	return &DeliveryWorker{
		Sender: sender,
		Logger: logger,
		cfg:    cfg,
		queue:  make(chan delivery, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (w *DeliveryWorker) Start() {
	for range w.cfg.Workers {
		w.wg.Add(1)
		go w.run()
	}
	w.Logger.Info("delivery worker started", "workers", w.cfg.Workers, "queue_size", w.cfg.QueueSize)
}

// Stop refuses new work, drains the queue and waits for in-flight sends.
func (w *DeliveryWorker) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.stopCh)
		w.mu.Unlock()
	})
	w.wg.Wait()
	w.Logger.Info("delivery worker stopped")
}

// Dispatch enqueues a code without blocking.
func (w *DeliveryWorker) Dispatch(ctx context.Context, destination, code string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrDeliveryStopped
	}

	d := delivery{destination: destination, code: code, logger: w.Logger}
	select {
	case w.queue <- d:
		return nil
	default:
		return ErrDeliveryQueueFull
	}
}

// Ready reports whether new codes can be queued.
func (w *DeliveryWorker) Ready() error {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()

	switch {
	case stopped:
		return ErrDeliveryStopped
	case len(w.queue) == cap(w.queue):
		return ErrDeliveryQueueFull
	}
	return nil
}

// Pending returns the number of queued, unsent codes.
func (w *DeliveryWorker) Pending() int { return len(w.queue) }

func (w *DeliveryWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case d := <-w.queue:
			w.send(d)
		case <-w.stopCh:
			for {
				select {
				case d := <-w.queue:
					w.send(d)
				default:
					return
				}
			}
		}
	}
}

func (w *DeliveryWorker) send(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SendTimeout)
	defer cancel()

	if err := w.Sender.Send(ctx, w.Compose(d.destination, d.code)); err != nil {
		derr := &DeliveryError{Destination: d.destination, Err: err}
		d.logger.Error("otp delivery failed", slog.Any("error", derr))
		return
	}
	d.logger.Debug("otp delivered", slog.String("to", maskEmail(d.destination)))
}

// Compose builds the email carrying code.
func (w *DeliveryWorker) Compose(destination, code string) mailx.Message {
	minutes := int(w.cfg.CodeTTL.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your %s sign-in code is %s.\r\n\r\n", w.cfg.SiteName, code)
	fmt.Fprintf(&b, "It expires in %d minute(s) and can be used once.\r\n", minutes)
	b.WriteString("If you did not request it, you can ignore this email.\r\n")

	return mailx.Message{
		From:     w.cfg.From,
		To:       []string{destination},
		Subject:  fmt.Sprintf("%s sign-in code", w.cfg.SiteName),
		TextBody: b.String(),
	}
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}
