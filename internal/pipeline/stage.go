package pipeline

import (
	"context"
	"fmt"
)

// Stage is one unit of transformation in the fixed pipeline order. The
// orchestrator, not the stage, decides what a failure means: Required
// stages abort the job, best-effort stages degrade to a warning.
type Stage struct {
	Name      string
	Label     string // human-readable progress message
	Required  bool
	Predicate func(*jobContext) bool
	Apply     func(ctx context.Context, jc *jobContext) error
}

// jobContext is the mutable state threaded through one job's stages.
// It is confined to the job's goroutine.
type jobContext struct {
	spec      JobSpec
	project   *Project
	publisher Publisher
	artifact  *Artifact

	tone       string
	source     *RemotePost
	sitemap    []Page
	affiliates []AffiliateLink

	// warnings collected inside a stage, drained into informational
	// progress events by the orchestrator after the stage returns.
	warnings []string

	result Result
}

func (jc *jobContext) warnf(format string, args ...any) {
	jc.warnings = append(jc.warnings, fmt.Sprintf(format, args...))
}

func (jc *jobContext) drainWarnings() []string {
	w := jc.warnings
	jc.warnings = nil
	return w
}
