// Package audit publica en RabbitMQ los eventos de autenticación: fallos de login y
// enlaces de recuperación de contraseña que consume el servicio de correo.
//
// Publicar nunca bloquea al llamador: el evento se encola en un buffer acotado y una
// única goroutine lo envía. Con el buffer lleno el evento se descarta.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/voter-auth-api/internal/application/auth"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	// DefaultQueue cola de los fallos de autenticación.
	DefaultQueue = "auth.failures"
	// DefaultRecoveryQueue cola de los enlaces de recuperación.
	DefaultRecoveryQueue = "auth.recovery"
	// DefaultBuffer eventos pendientes antes de empezar a descartar.
	DefaultBuffer = 256
	// DefaultSendTimeout límite de cada envío, conexión incluida.
	DefaultSendTimeout = 5 * time.Second
)

var (
	ErrQueueFull = errors.New("audit: buffer lleno, evento descartado")
	ErrClosed    = errors.New("audit: publicador cerrado")
)

var (
	_ auth.AuditPublisher   = (*Publisher)(nil)
	_ auth.RecoveryNotifier = (*Publisher)(nil)
)

// Config parámetros del publicador; los ceros toman los valores por defecto.
type Config struct {
	URL           string
	Queue         string
	RecoveryQueue string
	Buffer        int
	SendTimeout   time.Duration
}

// channel subconjunto de *amqp.Channel usado por el publicador.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (channel, func() error, error)

type outbound struct {
	queue string
	msg   amqp.Publishing
}

// Publisher encola eventos y los envía desde una goroutine propia, que mantiene la
// conexión y reconecta en el siguiente envío si se cae.
type Publisher struct {
	cfg  Config
	dial dialFunc
	log  zerolog.Logger

	out     chan outbound
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dropped atomic.Int64

	// Solo los toca la goroutine de envío.
	ch        channel
	closeConn func() error
	declared  map[string]bool
}

type failureMessage struct {
	TenantID   string    `json:"tenant_id"`
	Email      string    `json:"email"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

type recoveryMessage struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewPublisher arranca el publicador; la conexión se abre con el primer evento.
func NewPublisher(cfg Config, log zerolog.Logger) *Publisher {
	return newPublisher(cfg, log, dialAMQP)
}

func newPublisher(cfg Config, log zerolog.Logger, dial dialFunc) *Publisher {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.RecoveryQueue == "" {
		cfg.RecoveryQueue = DefaultRecoveryQueue
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		cfg:      cfg,
		dial:     dial,
		log:      log,
		out:      make(chan outbound, cfg.Buffer),
		ctx:      ctx,
		cancel:   cancel,
		declared: map[string]bool{},
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// dialAMQP conecta con el deadline de ctx para TCP y handshake AMQP.
func dialAMQP(ctx context.Context, url string) (channel, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Locale: "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// amqp limpia el deadline al terminar el handshake.
			if dl, ok := ctx.Deadline(); ok {
				if err := c.SetDeadline(dl); err != nil {
					_ = c.Close()
					return nil, err
				}
			}
			return c, nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// PublishFailure encola el evento como JSON persistente. No espera al broker.
func (p *Publisher) PublishFailure(_ context.Context, ev auth.FailureEvent) error {
	body, err := json.Marshal(failureMessage{
		TenantID:   ev.TenantID,
		Email:      ev.Email,
		Kind:       string(ev.Kind),
		OccurredAt: ev.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	return p.enqueue(outbound{queue: p.cfg.Queue, msg: amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt.UTC(),
		Type:         "auth.failure",
		Body:         body,
	}})
}

// SendRecovery encola el enlace de recuperación para el servicio de correo.
func (p *Publisher) SendRecovery(_ context.Context, m auth.RecoveryMessage) error {
	body, err := json.Marshal(recoveryMessage{
		TenantID:  m.TenantID,
		UserID:    m.UserID,
		Email:     m.Email,
		Name:      m.Name,
		Link:      m.Link,
		ExpiresAt: m.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("audit: marshal recovery: %w", err)
	}
	return p.enqueue(outbound{queue: p.cfg.RecoveryQueue, msg: amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Expiration:   expiration(time.Until(m.ExpiresAt)),
		Type:         "auth.recovery",
		Body:         body,
	}})
}

// Dropped eventos descartados por buffer lleno desde el arranque.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close detiene la goroutine de envío y libera la conexión. Los eventos pendientes se pierden.
func (p *Publisher) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Publisher) enqueue(o outbound) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case p.out <- o:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	defer p.reset()
	for {
		select {
		case <-p.ctx.Done():
			return
		case o := <-p.out:
			p.send(o)
		}
	}
}

func (p *Publisher) send(o outbound) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.SendTimeout)
	defer cancel()

	ch, err := p.channel(ctx, o.queue)
	if err != nil {
		p.log.Warn().Err(err).Str("queue", o.queue).Msg("evento de auditoría descartado")
		return
	}
	if err := ch.PublishWithContext(ctx, "", o.queue, false, false, o.msg); err != nil {
		p.reset()
		p.log.Warn().Err(err).Str("queue", o.queue).Msg("evento de auditoría descartado")
	}
}

func (p *Publisher) channel(ctx context.Context, queue string) (channel, error) {
	if p.ch == nil {
		ch, closeConn, err := p.dial(ctx, p.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("audit: dial: %w", err)
		}
		p.ch, p.closeConn = ch, closeConn
		p.log.Info().Msg("canal de auditoría abierto")
	}
	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			return nil, fmt.Errorf("audit: queue declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	return p.ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		_ = p.closeConn()
		p.closeConn = nil
	}
	clear(p.declared)
}

// expiration TTL por mensaje en milisegundos, como lo espera RabbitMQ.
func expiration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", d.Milliseconds())
}
