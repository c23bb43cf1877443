package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config holds the orchestrator's tuning knobs.
type Config struct {
	MaxInlineImages   int
	MaxInternalLinks  int
	MaxAffiliateLinks int
	ImageCallDelay    time.Duration
	PostStatus        string // remote post status on publish, e.g. "publish" or "draft"
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxInlineImages:   2,
		MaxInternalLinks:  3,
		MaxAffiliateLinks: 2,
		ImageCallDelay:    500 * time.Millisecond,
		PostStatus:        "publish",
	}
}

// Deps wires all collaborators into the orchestrator.
type Deps struct {
	Logger       *slog.Logger
	Projects     ProjectStore
	Ledger       CreditLedger
	Generator    Generator
	NewPublisher PublisherFactory
	Sitemap      SitemapFetcher
	Affiliates   AffiliateSource
	Sanitizer    Sanitizer
	Config       Config
}

// Orchestrator drives the content pipeline: precondition checks, a fixed
// ordered stage list, per-stage failure policy, and final billing.
type Orchestrator struct {
	logger     *slog.Logger
	projects   ProjectStore
	ledger     CreditLedger
	generator  Generator
	publishers PublisherFactory
	sitemap    SitemapFetcher
	affiliates AffiliateSource
	sanitizer  Sanitizer
	cfg        Config
}

// New constructs the orchestrator.
func New(deps Deps) *Orchestrator {
	cfg := deps.Config
	if cfg.MaxInlineImages <= 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		logger:     deps.Logger,
		projects:   deps.Projects,
		ledger:     deps.Ledger,
		generator:  deps.Generator,
		publishers: deps.NewPublisher,
		sitemap:    deps.Sitemap,
		affiliates: deps.Affiliates,
		sanitizer:  deps.Sanitizer,
		cfg:        cfg,
	}
}

// Run executes the job and returns its progress stream. The channel carries
// progress events in stage order with non-decreasing percentages and is
// closed after exactly one terminal event.
func (o *Orchestrator) Run(ctx context.Context, spec JobSpec) <-chan Event {
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		o.run(ctx, spec, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, spec JobSpec, events chan<- Event) {
	log := o.logger.With(
		slog.String("job_id", spec.JobID),
		slog.String("client_id", spec.ClientID),
		slog.String("kind", string(spec.Kind)),
	)
	log.Info("Pipeline job started", slog.String("topic", spec.Topic))

	jc, perr := o.checkPreconditions(ctx, spec)
	if perr != nil {
		log.Warn("Pipeline precondition failed",
			slog.String("code", string(perr.Code)),
			slog.String("error", perr.Message),
		)
		events <- errorEvent(perr)
		return
	}

	stages := o.buildStages(spec.Kind)
	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			log.Info("Pipeline canceled", slog.String("stage", st.Name))
			events <- errorEvent(NewError(CodeCanceled, "job canceled before stage %s", st.Name))
			return
		}
		if st.Predicate != nil && !st.Predicate(jc) {
			log.Debug("Stage skipped", slog.String("stage", st.Name))
			continue
		}

		pct := stagePercent(i, len(stages))
		events <- progressEvent(st.Label, pct)

		err := st.Apply(ctx, jc)
		for _, w := range jc.drainWarnings() {
			events <- progressEvent(w, pct)
		}

		if err != nil {
			if st.Required {
				perr := asPipelineError(err, CodeInternal)
				log.Error("Required stage failed",
					slog.String("stage", st.Name),
					slog.String("code", string(perr.Code)),
					slog.String("error", perr.Message),
				)
				events <- errorEvent(perr)
				return
			}
			log.Warn("Best-effort stage failed, continuing",
				slog.String("stage", st.Name),
				slog.String("error", err.Error()),
			)
			events <- progressEvent(fmt.Sprintf("%s failed, continuing without it", st.Label), pct)
		}
	}

	jc.result.Title = jc.artifact.Title
	jc.result.WordCount = jc.artifact.WordCount()
	jc.result.ImageCount = len(jc.artifact.ImageURLs)

	log.Info("Pipeline job succeeded",
		slog.Int64("remote_id", jc.result.RemoteID),
		slog.Int("word_count", jc.result.WordCount),
		slog.Float64("credits_used", jc.result.CreditsUsed),
	)
	events <- successEvent(&jc.result)
}

// checkPreconditions validates target ownership, credit availability, CMS
// credentials, and target reachability before any stage runs.
func (o *Orchestrator) checkPreconditions(ctx context.Context, spec JobSpec) (*jobContext, *PipelineError) {
	project, err := o.projects.GetProject(ctx, spec.ProjectID)
	if err != nil || project == nil {
		return nil, NewError(CodeNotFound, "project %s not found", spec.ProjectID)
	}
	if project.ClientID != spec.ClientID {
		return nil, NewError(CodeNotFound, "project %s not found", spec.ProjectID)
	}

	available, unlimited, err := o.ledger.Check(ctx, spec.ClientID, spec.Cost)
	if err != nil {
		return nil, NewError(CodeInternal, "credit check failed").WithDetail(err.Error())
	}
	if !unlimited && available < spec.Cost {
		return nil, NewError(CodeInsufficientCredits,
			"insufficient credits: required %.1f, available %.1f", spec.Cost, available)
	}

	if project.SiteURL == "" || project.CMSUsername == "" || project.CMSPassword == "" {
		return nil, NewError(CodeMissingConfiguration,
			"project %s is missing CMS credentials", spec.ProjectID)
	}

	publisher := o.publishers(Target{
		BaseURL:  project.SiteURL,
		Username: project.CMSUsername,
		Password: project.CMSPassword,
	})
	if err := publisher.Probe(ctx); err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return nil, pe
		}
		return nil, NewError(CodeTargetUnreachable, "target site %s is unreachable", project.SiteURL).
			WithDetail(err.Error())
	}

	return &jobContext{
		spec:      spec,
		project:   project,
		publisher: publisher,
		artifact:  &Artifact{},
	}, nil
}

// stagePercent maps a stage index onto 0-100. The terminal event carries 100.
func stagePercent(index, total int) int {
	if total <= 0 {
		return 0
	}
	return index * 100 / total
}
