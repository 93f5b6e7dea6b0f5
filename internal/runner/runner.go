// Package runner coordinates the fixed build topology: Architect first,
// then Engineer and asset resolution in parallel, then Guardian, Bundler,
// and optional native packaging. The scheduler is the only writer of the
// canonical BuildState; stages return deltas.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"artificer/internal/assets"
	"artificer/internal/budget"
	"artificer/internal/bundle"
	"artificer/internal/compile"
	"artificer/internal/config"
	"artificer/internal/guardian"
	"artificer/internal/llm"
	"artificer/internal/pipeline"
	t "artificer/internal/types"
)

// Scheduler wires the stages together for one or more runs.
type Scheduler struct {
	Architect *pipeline.Architect
	Engineer  *pipeline.Engineer
	Assets    *assets.Chain
	Guardian  *guardian.Guardian
	Bundler   *bundle.Bundler
	Packager  *compile.Packager
	Meter     *budget.Meter
	OutDir    string
	Recall    string // optional context from previous builds, fed to the Architect
}

// New assembles a scheduler from a wrapped client and the run configuration.
// The asset chain is library (when configured), then local synthesis, then
// the deferred manifest terminal.
func New(cli llm.Client, meter *budget.Meter, cfg config.Config, outDir string) *Scheduler {
	providers := []assets.Provider{}
	if cfg.Library.Endpoint != "" {
		lib, err := assets.NewLibraryProvider(assets.LibraryConfig{
			Endpoint:  cfg.Library.Endpoint,
			AccessKey: cfg.Library.AccessKey,
			SecretKey: cfg.Library.SecretKey,
			Bucket:    cfg.Library.Bucket,
			UseSSL:    cfg.Library.UseSSL,
		})
		if err != nil {
			log.Printf("runner: asset library disabled: %v", err)
		} else {
			providers = append(providers, lib)
		}
	}
	providers = append(providers, assets.NewSynthProvider(), assets.NewDeferredProvider())

	return &Scheduler{
		Architect: &pipeline.Architect{LLM: cli, Timeout: cfg.CompletionTimeout()},
		Engineer:  &pipeline.Engineer{LLM: cli, Timeout: cfg.CompletionTimeout(), MaxRepairs: 2},
		Assets: &assets.Chain{
			Providers: providers,
			Meter:     meter,
			Timeout:   cfg.AssetTimeout(),
			Retries:   1,
		},
		Guardian: &guardian.Guardian{
			LLM:         cli,
			Timeout:     cfg.CompletionTimeout(),
			ToolTimeout: cfg.ToolTimeout(),
		},
		Bundler:  &bundle.Bundler{},
		Packager: &compile.Packager{Timeout: cfg.ToolTimeout()},
		Meter:    meter,
		OutDir:   outDir,
	}
}

// Run executes one build. The returned state is always usable, even on
// error: a budget refusal fails the run but the partial package is still
// bundled.
func (s *Scheduler) Run(ctx context.Context, prompt string) (*t.BuildState, error) {
	state := t.NewBuildState(prompt)
	state.Advance(t.StatusBuilding)
	log.Printf("runner: building %q", prompt)

	bp, notes, err := s.Architect.Run(ctx, prompt, s.Recall)
	state.Notes = append(state.Notes, notes...)
	if err != nil {
		return s.fail(state, err)
	}
	state.Blueprint = bp
	projectDir := filepath.Join(s.OutDir, bp.ProjectName)

	engDelta, assetDeltas, fanErr := s.fanOut(ctx, state.Snapshot(), projectDir)
	s.merge(state, engDelta, assetDeltas)
	state.CallsUsed = s.Meter.Used()
	if fanErr != nil {
		return s.fail(state, fanErr)
	}

	state.Advance(t.StatusAuditing)
	report, patched, gnotes, gerr := s.Guardian.Run(ctx, state.Code)
	state.Report = report
	state.Code = patched
	state.Notes = append(state.Notes, gnotes...)
	state.CallsUsed = s.Meter.Used()
	if gerr != nil {
		return s.fail(state, gerr)
	}

	if _, err := s.Bundler.Run(state, projectDir); err != nil {
		return s.fail(state, fmt.Errorf("runner: bundle: %w", err))
	}

	if report != nil && report.Status == t.AuditApproved && s.Packager != nil {
		note := s.Packager.Run(ctx, state, projectDir)
		state.Notes = append(state.Notes, note)
	}

	state.Advance(t.StatusDone)
	for _, line := range RunReport(state) {
		log.Printf("runner: %s", line)
	}
	return state, nil
}

// fanOut runs the Engineer and one task per visual concurrently, each
// reading the post-Architect snapshot. A failed task yields an empty delta
// plus a note and never aborts its siblings; only a budget refusal is
// surfaced, and only after every task has joined.
func (s *Scheduler) fanOut(ctx context.Context, snap *t.BuildState, projectDir string) (t.StageDelta, []t.StageDelta, error) {
	bp := snap.Blueprint
	var (
		mu        sync.Mutex
		engDelta  t.StageDelta
		budgetErr error
	)
	assetDeltas := make([]t.StageDelta, len(bp.Visuals))
	record := func(err error) {
		mu.Lock()
		if budgetErr == nil {
			budgetErr = err
		}
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.Engineer.Run(gctx, bp)
		mu.Lock()
		engDelta = d
		mu.Unlock()
		if err != nil {
			record(err)
		}
		return nil
	})
	for i, vis := range bp.Visuals {
		g.Go(func() error {
			path, notes, err := s.Assets.Resolve(gctx, assets.Request{
				Prompt:   vis.Prompt,
				Filename: vis.Filename,
				Dir:      projectDir,
			})
			d := t.StageDelta{Notes: notes}
			if err != nil {
				if errors.Is(err, budget.ErrExceeded) {
					record(err)
				}
				d.Notes = append(d.Notes, "assets: "+vis.Filename+" unresolved: "+err.Error())
			} else {
				d.Assets = []string{path}
			}
			assetDeltas[i] = d
			return nil
		})
	}
	// tasks never return errors; failures are recorded as notes
	_ = g.Wait()
	return engDelta, assetDeltas, budgetErr
}

// merge applies the Engineer delta first, then the commutative asset deltas.
// Only the Engineer may introduce code-map keys; code carried by an asset
// delta is dropped with a note.
func (s *Scheduler) merge(state *t.BuildState, eng t.StageDelta, assetDeltas []t.StageDelta) {
	for k, v := range eng.Code {
		state.Code[k] = v
	}
	state.Notes = append(state.Notes, eng.Notes...)

	for _, d := range assetDeltas {
		for k := range d.Code {
			state.Notes = append(state.Notes, "runner: dropped code key "+k+" from asset delta")
		}
		state.Assets = append(state.Assets, d.Assets...)
		state.Notes = append(state.Notes, d.Notes...)
	}
	sort.Strings(state.Assets)
}

// fail marks the run failed and still bundles whatever exists, so a partial
// package is delivered even when the budget ran out mid-build.
func (s *Scheduler) fail(state *t.BuildState, cause error) (*t.BuildState, error) {
	state.Advance(t.StatusFailed)
	state.Notes = append(state.Notes, "runner: run failed: "+cause.Error())
	state.CallsUsed = s.Meter.Used()

	dir := filepath.Join(s.OutDir, projectName(state))
	if _, err := s.Bundler.Run(state, dir); err != nil {
		log.Printf("runner: best-effort bundle failed: %v", err)
	}
	for _, line := range RunReport(state) {
		log.Printf("runner: %s", line)
	}
	return state, cause
}

func projectName(state *t.BuildState) string {
	if state.Blueprint != nil && state.Blueprint.ProjectName != "" {
		return state.Blueprint.ProjectName
	}
	return "generated_app"
}

// RunReport summarizes per-component outcomes from the degradation notes:
// a component with no notes succeeded, one with notes degraded, and the run
// line carries the terminal status.
func RunReport(state *t.BuildState) []string {
	components := []struct{ name, prefix string }{
		{"architect", "architect:"},
		{"engineer", "engineer:"},
		{"assets", "assets:"},
		{"guardian", "guardian:"},
		{"compile", "compile:"},
	}
	var out []string
	for _, c := range components {
		status := "ok"
		for _, n := range state.Notes {
			if strings.HasPrefix(n, c.prefix) {
				status = "degraded"
				break
			}
		}
		out = append(out, c.name+": "+status)
	}
	verdict := "unaudited"
	if state.Report != nil {
		verdict = string(state.Report.Status)
	}
	out = append(out, fmt.Sprintf("run %s, audit %s, %d calls used", state.Status, verdict, state.CallsUsed))
	return out
}
