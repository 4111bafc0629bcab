package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"order-sync-service/internal/util"

	"go.uber.org/zap"
)

// IntakeClient calls the external intake analyzer to re-evaluate a message.
// The analyzer itself (NL extraction) is outside this service.
type IntakeClient struct {
	analyzerURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewIntakeClient creates a new intake analyzer client
func NewIntakeClient(analyzerURL string, timeout time.Duration) *IntakeClient {
	return &IntakeClient{
		analyzerURL: analyzerURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      util.GetLogger(),
	}
}

// Reanalyze asks the analyzer to re-process one intake event and returns the
// raw analysis result for the caller to relay. The call is bounded by the
// client timeout and is not retried: re-analysis creates a new proposal, so
// a blind retry could create two.
func (c *IntakeClient) Reanalyze(ctx context.Context, intakeEventID string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"intake_event_id": intakeEventID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analyzerURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intake analyzer request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyzer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intake analyzer returned %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("Intake event re-analyzed", zap.String("intake_event_id", intakeEventID))
	return respBody, nil
}
