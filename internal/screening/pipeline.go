// Package screening runs every entity of the listing universe through
// acquisition, normalization, projection, valuation and governance scoring,
// and assembles the results into a report.
package screening

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/governance"
	"github.com/aristath/screener/internal/normalize"
	"github.com/aristath/screener/internal/sources"
	"github.com/aristath/screener/internal/valuation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency is the number of entities screened at once
const DefaultMaxConcurrency = 8

// Resolver fetches a field set from the first source that can serve it
type Resolver interface {
	Resolve(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error)
}

// Config holds pipeline policy
type Config struct {
	MaxConcurrency int
	Universe       normalize.UniverseFilter
	// GovernanceExcludeAt excludes passing entities whose aggregate governance
	// severity reaches it. SeverityNone reports flags without excluding.
	GovernanceExcludeAt domain.Severity
	// FetchRatings attaches credit-rating summaries to qualified entities
	FetchRatings bool
}

// Pipeline screens the listing universe
type Pipeline struct {
	cfg        Config
	store      *clientdata.Store
	resolver   Resolver
	normalizer *normalize.Normalizer
	projector  *valuation.Projector
	calculator *valuation.Calculator
	scorer     *governance.Scorer
	log        zerolog.Logger
}

// NewPipeline creates a screening pipeline
func NewPipeline(
	cfg Config,
	store *clientdata.Store,
	resolver Resolver,
	normalizer *normalize.Normalizer,
	projector *valuation.Projector,
	calculator *valuation.Calculator,
	scorer *governance.Scorer,
	log zerolog.Logger,
) *Pipeline {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		resolver:   resolver,
		normalizer: normalizer,
		projector:  projector,
		calculator: calculator,
		scorer:     scorer,
		log:        log.With().Str("component", "screening_pipeline").Logger(),
	}
}

// Run screens the whole universe. The only run-level error is a universe
// that neither the cache nor any universe source can supply; every other
// failure is recorded on the affected entity's result.
func (p *Pipeline) Run(ctx context.Context) (*domain.Report, error) {
	report := &domain.Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	log := p.log.With().Str("run_id", report.RunID).Logger()

	entities, outside, err := p.Universe(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Screening run aborted")
		return nil, err
	}
	report.Universe = len(entities) + len(outside)

	log.Info().
		Int("entities", len(entities)).
		Int("outside_cap_band", len(outside)).
		Int("concurrency", p.cfg.MaxConcurrency).
		Msg("Screening universe")

	report.Results = p.ScreenAll(ctx, entities)
	for _, listing := range outside {
		report.Results = append(report.Results, p.outsideBand(listing))
	}
	SortResults(report.Results)
	for _, result := range report.Results {
		if result.State == domain.StateQualified {
			report.Qualified++
		} else {
			report.Excluded++
		}
	}
	report.FinishedAt = time.Now()

	log.Info().
		Int("universe", report.Universe).
		Int("qualified", report.Qualified).
		Int("excluded", report.Excluded).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Screening run completed")

	return report, nil
}

// Universe returns the entities to screen, from the cache or the universe
// sources, and the listings the cap band drops before screening
func (p *Pipeline) Universe(ctx context.Context) ([]domain.Entity, []normalize.OutsideBand, error) {
	entry, err := p.fetch(ctx, domain.UniverseEntity, domain.FieldSetUniverse)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrNoUniverse, err)
	}

	entities, outside, err := p.normalizer.Universe(entry.Payload, p.cfg.Universe)
	if err != nil {
		p.store.Invalidate(ctx, entry.Key)
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrNoUniverse, err)
	}
	return entities, outside, nil
}

// outsideBand records a listing the universe band dropped. The cap is the
// listing source's figure, not one derived from a quote.
func (p *Pipeline) outsideBand(listing normalize.OutsideBand) domain.ScreeningResult {
	result := domain.ScreeningResult{
		Entity: listing.Entity,
		State:  domain.StatePending,
		Notes:  []string{"market cap taken from the universe listing"},
	}
	return p.exclude(result, domain.ExclusionPredicate, fmt.Errorf(
		"listed market cap %.2f crore outside universe band [%s, %s]",
		listing.CapCrore, bound(p.cfg.Universe.MinCapCrore), bound(p.cfg.Universe.MaxCapCrore)))
}

func bound(v float64) string {
	if v <= 0 {
		return "open"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ScreenAll screens entities on a bounded worker pool and returns their
// results in report order. One entity's failure never stops the others.
func (p *Pipeline) ScreenAll(ctx context.Context, entities []domain.Entity) []domain.ScreeningResult {
	results := make([]domain.ScreeningResult, len(entities))

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, entity := range entities {
		g.Go(func() error {
			results[i] = p.Screen(ctx, entity)
			return nil
		})
	}
	_ = g.Wait()

	SortResults(results)
	return results
}

// Screen runs one entity through the state machine
func (p *Pipeline) Screen(ctx context.Context, entity domain.Entity) domain.ScreeningResult {
	result := domain.ScreeningResult{
		Entity:  entity,
		State:   domain.StatePending,
		Sources: make(map[domain.FieldSet]string),
	}
	log := p.log.With().Str("entity", entity.ID()).Logger()

	// Fetching
	result.State = domain.StateFetching
	quarterly, err := p.fetch(ctx, entity, domain.FieldSetQuarterly)
	if err != nil {
		return p.exclude(result, fetchExclusionKind(ctx, err), err)
	}
	result.Sources[domain.FieldSetQuarterly] = quarterly.SourceID

	price, err := p.fetch(ctx, entity, domain.FieldSetPrice)
	if err != nil {
		return p.exclude(result, fetchExclusionKind(ctx, err), err)
	}
	result.Sources[domain.FieldSetPrice] = price.SourceID

	var actionsPayload *domain.RawPayload
	actions, err := p.fetch(ctx, entity, domain.FieldSetActions)
	switch {
	case err == nil:
		actionsPayload = actions.Payload
		result.Sources[domain.FieldSetActions] = actions.SourceID
	case allNotFound(err):
		// no source knows of any split or bonus
	default:
		return p.exclude(result, fetchExclusionKind(ctx, err), err)
	}

	// Normalized
	var corporateActions []domain.CorporateAction
	if actionsPayload != nil {
		if corporateActions, err = p.normalizer.Actions(actionsPayload); err != nil {
			result.State = domain.StateNormalized
			return p.exclude(result, domain.ExclusionNormalization, err)
		}
	}
	history, err := p.normalizer.History(entity, quarterly.Payload, corporateActions)
	if err != nil {
		result.State = domain.StateNormalized
		return p.exclude(result, domain.ExclusionNormalization, err)
	}
	quote, err := p.normalizer.Quote(price.Payload)
	if err != nil {
		result.State = domain.StateNormalized
		return p.exclude(result, domain.ExclusionNormalization, err)
	}
	result.State = domain.StateNormalized
	if latest, ok := history.Latest(); ok {
		result.Record = &latest
	}
	if len(corporateActions) > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("restated for %d corporate action(s)", len(corporateActions)))
	}

	// Projected
	projection, err := p.projector.Project(history, quote.Shares)
	if err != nil {
		result.State = domain.StateProjected
		return p.exclude(result, projectionExclusionKind(err), err)
	}
	result.Projection = projection
	result.State = domain.StateProjected

	// Evaluated
	valuationResult, err := p.calculator.Evaluate(projection, history.Kind, quote)
	if err != nil {
		result.State = domain.StateEvaluated
		return p.exclude(result, projectionExclusionKind(err), err)
	}
	result.Valuation = valuationResult
	result.State = domain.StateEvaluated
	if !valuationResult.Passed {
		return p.exclude(result, domain.ExclusionPredicate, fmt.Errorf("failed %v", valuationResult.FailedChecks))
	}

	result.Flags = p.governance(ctx, entity, &result)
	if p.cfg.GovernanceExcludeAt > domain.SeverityNone && result.Flags.Aggregate >= p.cfg.GovernanceExcludeAt {
		return p.exclude(result, domain.ExclusionGovernance,
			fmt.Errorf("aggregate governance severity %s reaches %s", result.Flags.Aggregate, p.cfg.GovernanceExcludeAt))
	}

	if p.cfg.FetchRatings {
		result.Rating = p.rating(ctx, entity, &result)
	}

	result.State = domain.StateQualified
	log.Debug().
		Float64("forward_pe", valuationResult.ForwardPE).
		Float64("market_cap_crore", valuationResult.MarketCapCrore).
		Str("governance", result.Flags.Aggregate.String()).
		Msg("Entity qualified")

	return result
}

// governance scores the entity. Missing governance data skips every rule
// rather than excluding the entity.
func (p *Pipeline) governance(ctx context.Context, entity domain.Entity, result *domain.ScreeningResult) *domain.FlagSet {
	entry, err := p.fetch(ctx, entity, domain.FieldSetGovernance)
	if err != nil {
		result.Notes = append(result.Notes, "governance data unavailable: "+err.Error())
		return p.scorer.Score(nil)
	}
	result.Sources[domain.FieldSetGovernance] = entry.SourceID

	profile, err := p.normalizer.Governance(entry.Payload, p.store.Now())
	if err != nil {
		result.Notes = append(result.Notes, "governance data unusable: "+err.Error())
		return p.scorer.Score(nil)
	}
	return p.scorer.Score(profile)
}

// rating attaches the latest credit-rating summary when one can be obtained
func (p *Pipeline) rating(ctx context.Context, entity domain.Entity, result *domain.ScreeningResult) *domain.RatingSummary {
	entry, err := p.fetch(ctx, entity, domain.FieldSetCreditRating)
	if err != nil {
		result.Notes = append(result.Notes, "credit rating unavailable: "+err.Error())
		return nil
	}
	summary, err := p.normalizer.Rating(entry.Payload)
	if err != nil {
		result.Notes = append(result.Notes, "credit rating unusable: "+err.Error())
		return nil
	}
	result.Sources[domain.FieldSetCreditRating] = entry.SourceID
	return summary
}

// fetch serves fs for entity from the cache, resolving it on a miss
func (p *Pipeline) fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*clientdata.Entry, error) {
	key := clientdata.NewKey(entity, fs, p.store.Now())
	return p.store.GetOrFetch(ctx, key, func(ctx context.Context) (*domain.RawPayload, error) {
		payload, err := p.resolver.Resolve(ctx, entity, fs)
		if err != nil {
			return nil, err
		}
		payload.EntityID = entity.ID()
		payload.FieldSet = fs
		return payload, nil
	})
}

func (p *Pipeline) exclude(result domain.ScreeningResult, kind domain.ExclusionKind, err error) domain.ScreeningResult {
	exclusion := &domain.Exclusion{
		Stage:  result.State,
		Kind:   kind,
		Detail: err.Error(),
	}
	if unavailable, ok := sources.IsUnavailable(err); ok {
		exclusion.Attempts = unavailable.Attempts
	}
	result.Exclusion = exclusion
	result.State = domain.StateExcluded

	p.log.Debug().
		Str("entity", result.Entity.ID()).
		Str("stage", string(exclusion.Stage)).
		Str("kind", string(kind)).
		Str("detail", exclusion.Detail).
		Msg("Entity excluded")

	return result
}

func fetchExclusionKind(ctx context.Context, err error) domain.ExclusionKind {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.ExclusionCanceled
	}
	return domain.ExclusionUnavailable
}

func projectionExclusionKind(err error) domain.ExclusionKind {
	var nonPositive *domain.NonPositiveEPSError
	var normalization *domain.NormalizationError
	switch {
	case errors.Is(err, domain.ErrInsufficientHistory):
		return domain.ExclusionInsufficientHistory
	case errors.As(err, &nonPositive):
		return domain.ExclusionNonPositiveEPS
	case errors.As(err, &normalization):
		return domain.ExclusionNormalization
	default:
		return domain.ExclusionNormalization
	}
}

func allNotFound(err error) bool {
	unavailable, ok := sources.IsUnavailable(err)
	return ok && unavailable.AllNotFound()
}

// SortResults orders qualified results by forward P/E ascending, then the
// excluded ones, each group tie-broken by entity id
func SortResults(results []domain.ScreeningResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		aq, bq := a.State == domain.StateQualified, b.State == domain.StateQualified
		if aq != bq {
			return aq
		}
		if aq && a.Valuation.ForwardPE != b.Valuation.ForwardPE {
			return a.Valuation.ForwardPE < b.Valuation.ForwardPE
		}
		return a.Entity.ID() < b.Entity.ID()
	})
}
