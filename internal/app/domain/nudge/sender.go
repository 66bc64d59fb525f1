package nudge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers one push message to a user. Delivery is a collaborator
// concern; the nudger only cares that Send returns nil on success.
type Sender interface {
	Send(ctx context.Context, userID uuid.UUID, title, body string) error
}

// HTTPSender posts messages to the notification gateway.
type HTTPSender struct {
	logger  *zap.Logger
	client  *http.Client
	pushURL string
}

func NewHTTPSender(pushURL string, timeout time.Duration, logger *zap.Logger) *HTTPSender {
	return &HTTPSender{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		pushURL: pushURL,
	}
}

type pushPayload struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (s *HTTPSender) Send(ctx context.Context, userID uuid.UUID, title, body string) error {
	payload, err := json.Marshal(pushPayload{UserID: userID.String(), Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("encoding push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	s.logger.Debug("Push delivered", zap.String("userID", userID.String()))
	return nil
}
