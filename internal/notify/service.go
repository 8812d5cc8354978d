// Package notify delivers arbitrage alerts and operator messages to an
// external channel. Delivery is best-effort; the alert cooldown stored with
// each opportunity is the only dedup mechanism.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"spreadwatch/internal/database"
	"spreadwatch/internal/model"
)

// summaryLimit caps how many opportunities are rendered in one alert
// message.
const summaryLimit = 10

// Service formats and sends alert batches. A nil sender disables delivery
// without erroring; a run without Telegram credentials is still valid.
type Service struct {
	logger *slog.Logger
	repo   database.Repository
	sender Sender
}

// NewService creates a notification service. sender may be nil.
func NewService(logger *slog.Logger, repo database.Repository, sender Sender) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "notify")),
		repo:   repo,
		sender: sender,
	}
}

// SendArbitrageAlerts sends one batched message for all opportunities and,
// on confirmed send, marks each one alerted. Returns the number of
// opportunities covered by the alert.
func (s *Service) SendArbitrageAlerts(ctx context.Context, opportunities []model.ArbitrageOpportunity) (int, error) {
	if len(opportunities) == 0 {
		return 0, nil
	}
	if s.sender == nil {
		s.logger.Warn("alert channel not configured, alerts skipped")
		return 0, nil
	}

	message, err := s.formatSummary(ctx, opportunities)
	if err != nil {
		return 0, err
	}
	if err := s.sender.Send(ctx, message); err != nil {
		return 0, fmt.Errorf("send alert batch: %w", err)
	}

	for _, opp := range opportunities {
		if err := s.repo.MarkOpportunityAlerted(ctx, opp.ID); err != nil {
			s.logger.Error("failed to mark opportunity alerted",
				slog.Int64("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("alert batch sent", slog.Int("opportunities", len(opportunities)))
	return len(opportunities), nil
}

// formatSummary renders the alert batch. The top entries are listed
// individually with a totals footer.
func (s *Service) formatSummary(ctx context.Context, opportunities []model.ArbitrageOpportunity) (string, error) {
	exchanges, err := s.repo.ActiveExchanges(ctx)
	if err != nil {
		return "", fmt.Errorf("load exchange names: %w", err)
	}
	names := make(map[int64]string, len(exchanges))
	for _, ex := range exchanges {
		names[ex.ID] = ex.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 <b>Arbitrage opportunities (%d)</b>\n\n", len(opportunities))

	for i, opp := range opportunities {
		if i == summaryLimit {
			fmt.Fprintf(&b, "\n... and %d more\n", len(opportunities)-summaryLimit)
			break
		}
		fmt.Fprintf(&b, "📈 <b>%s/%s</b>\n", opp.BaseCurrency, opp.QuoteCurrency)
		fmt.Fprintf(&b, "   Buy: <b>%s</b> @ %.8f\n", s.exchangeName(names, opp.BuyExchangeID), opp.BuyPrice)
		fmt.Fprintf(&b, "   Sell: <b>%s</b> @ %.8f\n", s.exchangeName(names, opp.SellExchangeID), opp.SellPrice)
		fmt.Fprintf(&b, "   Profit: <b>%.4f%%</b> (after fees: %.4f%%)\n", opp.ProfitPercent, opp.NetProfitPercent)
		fmt.Fprintf(&b, "   Return: $%.2f per $1000\n\n", opp.ProfitUSD)
	}

	var totalProfit float64
	for _, opp := range opportunities {
		totalProfit += opp.ProfitUSD
	}

	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	b.WriteString("📊 <b>Total:</b>\n")
	fmt.Fprintf(&b, "   • Opportunities: %d\n", len(opportunities))
	fmt.Fprintf(&b, "   • Average return: $%.2f\n", totalProfit/float64(len(opportunities)))
	fmt.Fprintf(&b, "   • Combined return: $%.2f", totalProfit)

	return b.String(), nil
}

func (s *Service) exchangeName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("exchange %d", id)
}

// SendError reports a failure to the operator channel. Never returns an
// error; a broken alert channel must not mask the original failure.
func (s *Service) SendError(ctx context.Context, message string) {
	if s.sender == nil {
		return
	}
	text := fmt.Sprintf("❌ <b>System error</b>\n\n%s", message)
	if err := s.sender.Send(ctx, text); err != nil {
		s.logger.Error("failed to send error message", slog.String("error", err.Error()))
	}
}

// SendSummary pushes an end-of-run summary to the operator channel.
func (s *Service) SendSummary(ctx context.Context, text string) {
	if s.sender == nil {
		return
	}
	if err := s.sender.Send(ctx, text); err != nil {
		s.logger.Error("failed to send summary", slog.String("error", err.Error()))
	}
}
