package nudge

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/occupancy"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/observability/metrics"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

// Nudger reminds users whose last reading is aging out of relevance to share
// again. Each reading is nudged at most once via its notified flag; a crash
// between send and flag write may re-send, which is accepted.
type Nudger struct {
	logger   *zap.Logger
	repo     Repository
	readings occupancy.Repository
	sender   Sender
	calc     *occupancy.RewardCalculator
	cfg      config.NudgeConfig

	now func() time.Time
}

func NewNudger(repo Repository, readings occupancy.Repository, sender Sender,
	occupancyCfg config.OccupancyConfig, cfg config.NudgeConfig, logger *zap.Logger) *Nudger {
	return &Nudger{
		logger:   logger,
		repo:     repo,
		readings: readings,
		sender:   sender,
		calc:     occupancy.NewRewardCalculator(occupancyCfg),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Name identifies the nudger on the job scheduler.
func (n *Nudger) Name() string { return "activity_nudger" }

// Run executes one scan. Per-reading failures are logged and skipped; the
// reading stays un-notified and is retried while it remains in the window.
func (n *Nudger) Run(ctx context.Context) error {
	ctx, span := otel.Tracer("ActivityNudger").Start(ctx, "Run")
	defer span.End()

	now := n.now()
	oldest := now.Add(-time.Duration(n.cfg.BeforeMinutes) * time.Minute)
	newest := now.Add(-time.Duration(n.cfg.AfterMinutes) * time.Minute)

	pending, err := n.repo.PendingNudges(ctx, oldest, newest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list pending nudges")
		return err
	}

	sent := 0
	for _, p := range pending {
		if err := n.nudge(ctx, p); err != nil {
			n.logger.Warn("Skipping nudge after failure",
				zap.String("readingID", p.ReadingID.String()), zap.Any("error", err))
			continue
		}
		sent++
	}

	if sent > 0 {
		n.logger.Info("Activity nudges sent", zap.Int("sent", sent), zap.Int("pending", len(pending)))
		metrics.App().NudgesSentTotal.Add(ctx, int64(sent))
	}
	span.SetAttributes(attribute.Int("nudge.sent", sent), attribute.Int("nudge.pending", len(pending)))
	span.SetStatus(codes.Ok, "Scan complete")
	return nil
}

func (n *Nudger) nudge(ctx context.Context, p PendingNudge) error {
	// Points are recomputed at nudge time; the floor may have crossed a
	// reward tier since the reading was stored.
	authored, err := n.readings.CountAuthoredReadings(ctx, p.FloorID)
	if err != nil {
		return err
	}
	points := n.calc.Points(authored)

	title := fmt.Sprintf("%s에 아직 계신가요?", p.CafeName)
	body := fmt.Sprintf("%s 혼잡도를 다시 공유하면 %d 포인트를 받을 수 있어요.", p.FloorName, points)
	if err := n.sender.Send(ctx, p.UserID, title, body); err != nil {
		return err
	}

	return n.repo.MarkNotified(ctx, p.ReadingID)
}
