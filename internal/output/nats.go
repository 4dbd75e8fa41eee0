package output

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/model"
	"fmt"

	"github.com/apex/log"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "ndt7.features"

// RowMessage is one dataset row as published on NATS.
type RowMessage struct {
	RunID     string
	Dataset   string
	Mode      string
	Threshold float64
	RowIndex  int
	UUID      string
	// Features maps column names to float64, string or nil.
	Features map[string]interface{}
}

// toProto encodes the message as a protobuf Struct.
func (r RowMessage) toProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"run_id":    r.RunID,
		"dataset":   r.Dataset,
		"mode":      r.Mode,
		"threshold": r.Threshold,
		"row_index": float64(r.RowIndex),
		"uuid":      r.UUID,
		"features":  r.Features,
	})
}

// rowMessageFromProto decodes a message built by toProto.
func rowMessageFromProto(s *structpb.Struct) RowMessage {
	m := s.AsMap()
	msg := RowMessage{}
	msg.RunID, _ = m["run_id"].(string)
	msg.Dataset, _ = m["dataset"].(string)
	msg.Mode, _ = m["mode"].(string)
	msg.Threshold, _ = m["threshold"].(float64)
	if idx, ok := m["row_index"].(float64); ok {
		msg.RowIndex = int(idx)
	}
	msg.UUID, _ = m["uuid"].(string)
	msg.Features, _ = m["features"].(map[string]interface{})
	return msg
}

// subjectFor returns the subject rows of a mode are published on.
func subjectFor(prefix, mode string) string {
	return prefix + "." + mode
}

// Publisher publishes every dataset row to NATS.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the NATS server.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at '%s': %w", cfg.URL, err)
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	log.Infof("connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: subject}, nil
}

// Name returns the writer type.
func (p *Publisher) Name() string {
	return TypeNATS
}

// Write publishes one protobuf message per row and flushes.
func (p *Publisher) Write(ds *model.Dataset, run model.RunInfo) error {
	subject := subjectFor(p.subject, ds.Mode)
	for i, row := range ds.Rows {
		features := make(map[string]interface{}, len(ds.Columns))
		for j, col := range ds.Columns {
			features[col] = row[j].Interface()
		}
		msg, err := RowMessage{
			RunID:     run.RunID,
			Dataset:   ds.Name,
			Mode:      ds.Mode,
			Threshold: ds.Threshold,
			RowIndex:  i,
			UUID:      ds.UUIDs[i],
			Features:  features,
		}.toProto()
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		data, err := proto.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		if err := p.nc.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish row %d: %w", i, err)
		}
	}
	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	log.WithFields(log.Fields{"subject": subject, "rows": len(ds.Rows)}).Info("published dataset to NATS")
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// RowHandler processes a received row.
type RowHandler func(msg RowMessage)

// Subscriber receives the rows published by Publisher.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber connects to the NATS server. mode selects the rows of one
// feature mode; "*" receives all of them.
func NewSubscriber(cfg config.NATSConfig, mode string) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at '%s': %w", cfg.URL, err)
	}
	prefix := cfg.Subject
	if prefix == "" {
		prefix = DefaultSubject
	}
	log.Infof("connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: subjectFor(prefix, mode)}, nil
}

// Start subscribes and hands every decoded row to handler.
func (s *Subscriber) Start(handler RowHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(m *nats.Msg) {
		var pb structpb.Struct
		if err := proto.Unmarshal(m.Data, &pb); err != nil {
			log.WithError(err).Warn("failed to unmarshal row message")
			return
		}
		handler(rowMessageFromProto(&pb))
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Infof("subscribed to '%s', waiting for rows", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
