// Package app wires the polling, analysis and notification stages into one
// run of the arbitrage pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spreadwatch/internal/arbitrage"
	"spreadwatch/internal/notify"
	"spreadwatch/internal/poller"
)

// Result aggregates the outcome of one coordinator run.
type Result struct {
	SessionID          string
	PollingCompleted   bool
	PollingStats       map[string]poller.Stats
	OpportunitiesFound int
	OpportunitiesSaved int
	AlertsSent         int
	Duration           time.Duration
}

// Coordinator runs the arbitrage pipeline once: poll, analyze, save, alert.
// There is no background scheduler; each invocation completes or fails
// deterministically.
type Coordinator struct {
	logger      *slog.Logger
	poller      *poller.Service
	engine      *arbitrage.Engine
	notifier    *notify.Service
	skipPolling bool
	sessionID   string
}

// NewCoordinator creates a coordinator for one run. With skipPolling set the
// analysis works off the existing price snapshot.
func NewCoordinator(logger *slog.Logger, p *poller.Service, e *arbitrage.Engine, n *notify.Service, skipPolling bool) *Coordinator {
	sessionID := "arb_" + time.Now().Format("20060102_150405")
	return &Coordinator{
		logger:      logger.With(slog.String("session_id", sessionID)),
		poller:      p,
		engine:      e,
		notifier:    n,
		skipPolling: skipPolling,
		sessionID:   sessionID,
	}
}

// Run executes the pipeline. Failures inside one stage are isolated as far
// as possible; an unrecoverable failure is reported to the operator channel
// before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	start := time.Now()
	c.logger.Info("coordinator starting")

	result, err := c.run(ctx)
	result.SessionID = c.sessionID
	result.Duration = time.Since(start)

	if err != nil {
		c.logger.Error("coordinator failed", slog.String("error", err.Error()))
		c.notifier.SendError(ctx, fmt.Sprintf("coordinator %s failed: %v", c.sessionID, err))
		return err
	}

	c.logResult(ctx, result)
	return nil
}

func (c *Coordinator) run(ctx context.Context) (Result, error) {
	var result Result

	if c.skipPolling {
		c.logger.Info("stage 1: polling skipped")
		result.PollingCompleted = true
	} else {
		c.logger.Info("stage 1: polling exchanges")
		stats, err := c.poller.PollAll(ctx)
		if err != nil {
			return result, fmt.Errorf("polling: %w", err)
		}
		result.PollingCompleted = true
		result.PollingStats = stats
	}

	c.logger.Info("stage 2: analyzing arbitrage opportunities")
	opportunities, err := c.engine.Analyze(ctx)
	if err != nil {
		return result, fmt.Errorf("analysis: %w", err)
	}
	result.OpportunitiesFound = len(opportunities)

	// Zero opportunities is a normal outcome, not an error.
	if len(opportunities) == 0 {
		c.logger.Info("no arbitrage opportunities found")
		return result, nil
	}

	c.logger.Info("stage 3: saving opportunities", slog.Int("found", len(opportunities)))
	result.OpportunitiesSaved = c.engine.SaveOpportunities(ctx, opportunities)

	c.logger.Info("stage 4: checking alert eligibility")
	alertable, err := c.engine.OpportunitiesForAlert(ctx)
	if err != nil {
		return result, fmt.Errorf("alert query: %w", err)
	}
	if len(alertable) == 0 {
		c.logger.Info("no opportunities eligible for alert")
		return result, nil
	}

	c.logger.Info("stage 5: sending alerts", slog.Int("eligible", len(alertable)))
	sent, err := c.notifier.SendArbitrageAlerts(ctx, alertable)
	if err != nil {
		return result, fmt.Errorf("alerts: %w", err)
	}
	result.AlertsSent = sent

	return result, nil
}

func (c *Coordinator) logResult(ctx context.Context, result Result) {
	c.logger.Info("coordinator finished",
		slog.Duration("duration", result.Duration),
		slog.Int("opportunities_found", result.OpportunitiesFound),
		slog.Int("opportunities_saved", result.OpportunitiesSaved),
		slog.Int("alerts_sent", result.AlertsSent),
	)

	summary := fmt.Sprintf(
		"🎯 <b>Arbitrage run finished</b>\n\n"+
			"🆔 Session: <code>%s</code>\n"+
			"⏱ Duration: %.2fs\n"+
			"📊 Opportunities found: %d\n"+
			"💾 Saved: %d\n"+
			"📤 Alerts sent: %d",
		result.SessionID,
		result.Duration.Seconds(),
		result.OpportunitiesFound,
		result.OpportunitiesSaved,
		result.AlertsSent,
	)
	c.notifier.SendSummary(ctx, summary)
}
