package payload

import (
	"context"
	"encoding/json"
	"log/slog"

	"portseal/internal/domain"
	"portseal/internal/observability/metrics"
	"portseal/internal/protocol/session"
	"portseal/internal/secret"
	sessionsvc "portseal/internal/services/session"
)

// Service applies secret.EncryptPorts / DecryptPorts under a stored session.
type Service struct {
	sessions *sessionsvc.Service
	log      *slog.Logger
}

func New(sessions *sessionsvc.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{sessions: sessions, log: log}
}

func (s *Service) EncryptPorts(
	ctx context.Context,
	id domain.SessionID,
	doc json.RawMessage,
	handles []string,
) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.sessions.With(ctx, id, func(sess *session.Session) error {
		var err error
		out, err = secret.EncryptPorts(sess, doc, handles)
		if err != nil {
			return err
		}
		sess.CommitSender(nil)
		return nil
	})
	metrics.SessionOperationsTotal.WithLabelValues("encrypt", metrics.Result(err)).Inc()
	if err != nil {
		s.log.WarnContext(ctx, "encrypt ports failed", "session_id", id.String(), "error", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "ports encrypted", "session_id", id.String(), "ports", len(handles))
	return out, nil
}

func (s *Service) DecryptPorts(
	ctx context.Context,
	id domain.SessionID,
	doc json.RawMessage,
	handles []string,
) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.sessions.With(ctx, id, func(sess *session.Session) error {
		var err error
		out, err = secret.DecryptPorts(sess, doc, handles)
		return err
	})
	metrics.SessionOperationsTotal.WithLabelValues("decrypt", metrics.Result(err)).Inc()
	if err != nil {
		s.log.WarnContext(ctx, "decrypt ports failed", "session_id", id.String(), "class", failureClass(err), "error", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "ports decrypted", "session_id", id.String(), "ports", len(handles))
	return out, nil
}

var _ domain.PayloadService = (*Service)(nil)
