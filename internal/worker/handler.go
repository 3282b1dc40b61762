package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wecure/medstore/internal/domain"
	"github.com/wecure/medstore/internal/orders"
)

// Notifier turns order lifecycle events into customer emails. It runs after
// the checkout transaction has committed; nothing here can undo an order.
type Notifier struct {
	emailServiceURL string
	repo            *orders.Repository
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotifier(emailServiceURL string, repo *orders.Repository, client *http.Client, logger *slog.Logger) *Notifier {
	return &Notifier{
		emailServiceURL: emailServiceURL,
		repo:            repo,
		httpClient:      client,
		logger:          logger,
	}
}

func (n *Notifier) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	n.logger.Info("processing order created event", "order_number", event.OrderNumber, "user_id", event.UserID)

	body := fmt.Sprintf("Your order %s with %d items totalling %s has been received.",
		event.OrderNumber, len(event.Items), event.TotalAmount.StringFixed(2))
	if err := n.sendEmail(ctx, event.CustomerEmail, "Order Confirmation: "+event.OrderNumber, body); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	// Fulfillment kicks off once the customer has been notified. An invalid
	// transition means the customer already cancelled; that is not a reason
	// to redeliver the event.
	if err := n.repo.AdvanceStatus(ctx, event.OrderID, domain.OrderStatusConfirmed); err != nil {
		var stateErr *domain.InvalidStateError
		if errors.As(err, &stateErr) {
			n.logger.Info("order no longer confirmable", "order_id", event.OrderID, "reason", stateErr.Message)
			return nil
		}
		return fmt.Errorf("confirm order %d: %w", event.OrderID, err)
	}

	n.logger.Info("order confirmed", "order_id", event.OrderID, "order_number", event.OrderNumber)
	return nil
}

func (n *Notifier) HandleOrderCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order cancelled event: %w", err)
	}

	n.logger.Info("processing order cancelled event", "order_number", event.OrderNumber, "user_id", event.UserID)

	body := fmt.Sprintf("Your order %s has been cancelled and any reserved items returned to stock.", event.OrderNumber)
	if err := n.sendEmail(ctx, event.CustomerEmail, "Order Cancelled: "+event.OrderNumber, body); err != nil {
		return fmt.Errorf("send cancellation email: %w", err)
	}

	return nil
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		n.logger.Warn("no customer email on event, skipping notification", "subject", subject)
		return nil
	}

	payload := map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
