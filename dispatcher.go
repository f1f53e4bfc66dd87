package fitsync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pilab-dev/fitsync/domain"
	"github.com/pilab-dev/fitsync/internal/metrics"
)

// ActionRefresh is the tick-table action that refreshes every registered
// client's token pair. Any other action value names a metric stream.
const ActionRefresh = "refresh"

// DefaultSweepConcurrency bounds how many clients are processed in parallel
// during one sweep.
const DefaultSweepConcurrency = 4

// Syncer is the part of the SyncEngine the dispatcher needs.
type Syncer interface {
	Sync(ctx context.Context, clientID string, stream domain.MetricStream) error
}

// Refresher is the part of the TokenService the dispatcher needs.
type Refresher interface {
	Refresh(ctx context.Context, cred *domain.Credential) error
}

// CronDispatcher maps an externally delivered tick id (a cron-like
// expression) to one of two sweeps over all registered clients: refresh all
// token pairs, or sync one metric stream. The core is passive; an external
// scheduler delivers the ticks.
type CronDispatcher struct {
	creds       domain.CredentialRepository
	syncer      Syncer
	refresher   Refresher
	table       map[string]string
	concurrency int
}

// NewCronDispatcher validates the tick table (every non-refresh action must
// name a known stream) and returns a dispatcher.
func NewCronDispatcher(
	creds domain.CredentialRepository,
	syncer Syncer,
	refresher Refresher,
	table map[string]string,
	concurrency int,
) (*CronDispatcher, error) {
	for tick, action := range table {
		if action == ActionRefresh {
			continue
		}
		if _, err := domain.ParseStream(action); err != nil {
			return nil, fmt.Errorf("tick %q: %w", tick, err)
		}
	}
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &CronDispatcher{
		creds:       creds,
		syncer:      syncer,
		refresher:   refresher,
		table:       table,
		concurrency: concurrency,
	}, nil
}

// DefaultTickTable mirrors the schedule the service was originally deployed
// with: one token-refresh slot every six hours and one minute slot per
// stream at the top of each hour.
func DefaultTickTable() map[string]string {
	table := map[string]string{
		"55 */6 * * *": ActionRefresh,
	}
	for i, stream := range domain.AllStreams() {
		table[fmt.Sprintf("%d * * * *", i)] = string(stream)
	}
	return table
}

// Dispatch runs the sweep mapped to tickID. Unknown tick ids are logged and
// ignored. Per-client failures are logged and never abort the sweep; the
// returned error reports only failures to enumerate the registry itself.
func (d *CronDispatcher) Dispatch(ctx context.Context, tickID string) error {
	action, ok := d.table[tickID]
	if !ok {
		log.Warn().Str("tick", tickID).Msg("unmapped tick ignored")
		return nil
	}

	metrics.TicksDispatchedTotal.Inc()
	run := uuid.NewString()[:8]

	if action == ActionRefresh {
		return d.refreshAll(ctx, run)
	}

	// Validated at construction.
	stream, _ := domain.ParseStream(action)
	return d.syncAll(ctx, run, stream)
}

func (d *CronDispatcher) refreshAll(ctx context.Context, run string) error {
	log.Info().Str("run", run).Msg("token refresh sweep started")

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	var total int
	err := d.creds.ForEach(ctx, func(cred *domain.Credential) error {
		total++
		g.Go(func() error {
			if err := d.refresher.Refresh(ctx, cred); err != nil {
				log.Error().Err(err).
					Str("run", run).
					Str("client_id", cred.ClientID).
					Msg("token refresh failed")
			}
			return nil
		})
		return nil
	})
	g.Wait() //nolint:errcheck // workers only log, they never return errors
	if err != nil {
		return fmt.Errorf("enumerate credentials: %w", err)
	}

	metrics.RegisteredClientsGauge.Set(float64(total))
	log.Info().Str("run", run).Int("clients", total).Msg("token refresh sweep finished")
	return nil
}

func (d *CronDispatcher) syncAll(ctx context.Context, run string, stream domain.MetricStream) error {
	clientIDs, err := d.creds.ListClientIDs(ctx)
	if err != nil {
		return fmt.Errorf("list client ids: %w", err)
	}

	log.Info().
		Str("run", run).
		Str("stream", string(stream)).
		Int("clients", len(clientIDs)).
		Msg("sync sweep started")

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, clientID := range clientIDs {
		g.Go(func() error {
			if err := d.syncer.Sync(ctx, clientID, stream); err != nil {
				log.Error().Err(err).
					Str("run", run).
					Str("client_id", clientID).
					Str("stream", string(stream)).
					Msg("client sync failed")
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers only log, they never return errors

	metrics.RegisteredClientsGauge.Set(float64(len(clientIDs)))
	log.Info().Str("run", run).Str("stream", string(stream)).Msg("sync sweep finished")
	return nil
}
