package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"github.com/dmitrijs2005/cashkeeper/internal/server/mail"
	"github.com/dmitrijs2005/cashkeeper/internal/server/models"
	"github.com/dmitrijs2005/cashkeeper/internal/server/reconcile"
)

// DefaultProvider names the bank whose notifications are reconciled.
const DefaultProvider = "ukrsib"

// MailSource is the mail-provider collaborator.
type MailSource interface {
	HasValidSession(ctx context.Context) bool
	ListRecentMessages(ctx context.Context, max int64) ([]string, error)
}

// CashService reconciles balances from the most recent bank notifications.
type CashService struct {
	mail        MailSource
	engine      *reconcile.Engine
	maxMessages int64
	timeout     time.Duration
	provider    string
	logger      logging.Logger
}

// NewCashService constructs a CashService. A zero timeout disables the
// request deadline.
func NewCashService(src MailSource, engine *reconcile.Engine, maxMessages int64, timeout time.Duration, logger logging.Logger) *CashService {
	return &CashService{
		mail:        src,
		engine:      engine,
		maxMessages: maxMessages,
		timeout:     timeout,
		provider:    DefaultProvider,
		logger:      logger.With("module", "cash"),
	}
}

// Balances returns one balance per configured currency, in configuration
// order. A missing mail session or an exceeded deadline yields
// ErrServiceUnavailable; any other failure ErrorInternal.
func (s *CashService) Balances(ctx context.Context) ([]models.CurrencyBalance, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if !s.mail.HasValidSession(ctx) {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrServiceUnavailable, ctx.Err())
		}
		return nil, fmt.Errorf("%w: no mail session", common.ErrServiceUnavailable)
	}

	messages, err := s.mail.ListRecentMessages(ctx, s.maxMessages)
	if err != nil {
		switch {
		case errors.Is(err, mail.ErrNoSession),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(ctx.Err(), context.DeadlineExceeded):
			s.logger.Warn(ctx, "mail unavailable", "error", err)
			return nil, fmt.Errorf("%w: %v", common.ErrServiceUnavailable, err)
		default:
			s.logger.Error(ctx, "listing messages failed", "error", err)
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
	}

	values := s.engine.Reconcile(messages)

	out := make([]models.CurrencyBalance, 0, len(values))
	for _, cur := range s.engine.Currencies() {
		out = append(out, models.CurrencyBalance{
			Provider: s.provider,
			Currency: cur,
			Value:    values[cur],
		})
	}

	s.logger.Debug(ctx, "balances reconciled", "messages", len(messages), "currencies", len(out))
	return out, nil
}
