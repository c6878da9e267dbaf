// Package notify publishes operator-facing events over NATS JetStream.
// Consumers (operator dashboard, CRM sync) subscribe out of process; the
// platform only ever publishes.
package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/model"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// Config holds NATS connection configuration.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

const (
	streamName = "NOTIFICATIONS"

	subjectOperatorAttention = "notifications.operator.attention"
	subjectHotLead           = "notifications.lead.hot"
)

// OperatorAttentionEvent asks an operator to look at a conversation.
type OperatorAttentionEvent struct {
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	ChannelAddress string    `json:"channel_address"`
	Reason         string    `json:"reason"`
	At             time.Time `json:"at"`
}

// HotLeadEvent announces a newly qualified hot lead.
type HotLeadEvent struct {
	TenantID       string            `json:"tenant_id"`
	LeadID         string            `json:"lead_id"`
	ChannelAddress string            `json:"channel_address"`
	Source         model.Channel     `json:"source"`
	Score          int               `json:"score"`
	Confidence     int               `json:"confidence"`
	Contact        model.ContactInfo `json:"contact"`
	At             time.Time         `json:"at"`
}

// Publisher owns the NATS connection and the NOTIFICATIONS stream.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes the NATS connection and ensures the notification
// stream exists.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS async error", zap.Error(err))
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"notifications.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure %s stream: %w", streamName, err)
	}

	return &Publisher{conn: nc, js: js, logger: log}, nil
}

// OperatorAttention publishes an operator attention event.
func (p *Publisher) OperatorAttention(ctx context.Context, tenantID, conversationID, address, reason string) error {
	return p.publish(ctx, subjectOperatorAttention, OperatorAttentionEvent{
		TenantID:       tenantID,
		ConversationID: conversationID,
		ChannelAddress: address,
		Reason:         reason,
		At:             time.Now().UTC(),
	})
}

// HotLead publishes a hot lead event.
func (p *Publisher) HotLead(ctx context.Context, lead *model.Lead) error {
	return p.publish(ctx, subjectHotLead, HotLeadEvent{
		TenantID:       lead.TenantID,
		LeadID:         lead.ID,
		ChannelAddress: lead.ChannelAddress,
		Source:         lead.Source,
		Score:          lead.Score,
		Confidence:     lead.Confidence,
		Contact: model.ContactInfo{
			Name:    lead.Name,
			Email:   lead.Email,
			Phone:   lead.Phone,
			Service: lead.Service,
		},
		At: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("notification published", zap.String("subject", subject))
	return nil
}

// IsConnected reports NATS connection health for the readiness probe.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
