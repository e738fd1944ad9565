package yao

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Outcome is how a workflow ended when it did not fail.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeAborted
)

func (o Outcome) String() string {
	if o == OutcomeAborted {
		return "aborted"
	}
	return "done"
}

// PlanItem is one requested package after classification.
type PlanItem struct {
	Name      string
	Kind      PackageKind
	Installed bool
}

// Orchestrator drives the sync and get workflows.
type Orchestrator struct {
	cfg        *Config
	classifier *Classifier
	repo       BinaryRepo
	installer  Installer
	catalog    SourceCatalog
	snapshots  Snapshots
	extractor  Extractor
	planner    *Planner
	builder    *Builder
	prompter   Prompter
	reviewer   Reviewer // nil disables recipe review
	stamps     *StampStore
	ui         *UI
	log        hclog.Logger
	// workDir is where the get workflow unpacks recipe trees.
	workDir string
}

// Deps bundles the collaborators of an Orchestrator.
type Deps struct {
	Repo      BinaryRepo
	Installer Installer
	Catalog   SourceCatalog
	Snapshots Snapshots
	Extractor Extractor
	BuildTool BuildTool
	Prompter  Prompter
	Reviewer  Reviewer
	Stamps    *StampStore
	UI        *UI
	Log       hclog.Logger
	WorkDir   string
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(cfg *Config, d Deps) *Orchestrator {
	workDir := d.WorkDir
	if workDir == "" {
		workDir = "."
	}
	return &Orchestrator{
		cfg:        cfg,
		classifier: NewClassifier(d.Repo, d.Catalog, d.Log.Named("classify")),
		repo:       d.Repo,
		installer:  d.Installer,
		catalog:    d.Catalog,
		snapshots:  d.Snapshots,
		extractor:  d.Extractor,
		planner:    NewPlanner(d.BuildTool, d.Log.Named("plan")),
		builder:    NewBuilder(d.BuildTool, d.UI, d.Log.Named("build")),
		prompter:   d.Prompter,
		reviewer:   d.Reviewer,
		stamps:     d.Stamps,
		ui:         d.UI,
		log:        d.Log,
		workDir:    workDir,
	}
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Plan classifies every name in request order. The first failure aborts the
// whole batch.
func (o *Orchestrator) Plan(ctx context.Context, names []string) ([]PlanItem, error) {
	plan := make([]PlanItem, 0, len(names))
	for _, name := range uniqueNames(names) {
		kind, err := o.classifier.Classify(ctx, name)
		if err != nil {
			return nil, err
		}
		plan = append(plan, PlanItem{
			Name:      name,
			Kind:      kind,
			Installed: o.repo.Installed(ctx, name),
		})
	}
	return plan, nil
}

func (o *Orchestrator) printPlan(plan []PlanItem) {
	o.ui.Section("Packages to process:")
	for _, item := range plan {
		o.ui.Line("   %s (%s)", item.Name, item.Kind)
		if item.Installed {
			o.ui.Line("      %s", colWarn.Sprintf("warning: %s is up to date -- reinstalling", item.Name))
		}
	}
}

// Sync installs the named packages: repository packages through pacman -S,
// AUR packages by building them locally and installing the result with pacman -U.
func (o *Orchestrator) Sync(ctx context.Context, names []string, force bool) (Outcome, error) {
	if len(names) == 0 {
		return OutcomeDone, errNoPackages
	}

	plan, err := o.Plan(ctx, names)
	if err != nil {
		return OutcomeDone, err
	}

	o.printPlan(plan)
	proceed, err := o.prompter.Confirm("Proceed with installation?")
	if err != nil {
		return OutcomeDone, err
	}
	if !proceed {
		o.ui.Aborted("")
		return OutcomeAborted, nil
	}

	for i := 0; i < len(plan); {
		item := plan[i]
		var err error
		if item.Kind == KindRepo {
			// consecutive repo packages share one pacman transaction
			j := i
			var batch []string
			for j < len(plan) && plan[j].Kind == KindRepo {
				batch = append(batch, plan[j].Name)
				j++
			}
			o.ui.Step("[repo] installing %s", strings.Join(batch, " "))
			err = o.installer.SyncInstall(ctx, batch)
			if err != nil && !errors.Is(err, ErrUserDeclined) {
				err = stageErr(strings.Join(batch, " "), "install", err)
			}
			i = j
		} else {
			o.ui.Step("[aur] building %s", item.Name)
			err = o.buildAndInstall(ctx, item.Name, force)
			i++
		}

		if errors.Is(err, ErrUserDeclined) {
			o.ui.Aborted(abortReason(err))
			return OutcomeAborted, nil
		}
		if err != nil {
			return OutcomeDone, err
		}
	}
	return OutcomeDone, nil
}

// errEditorAborted marks a review the user backed out of in the editor.
var errEditorAborted = fmt.Errorf("%w: editor", ErrUserDeclined)

func abortReason(err error) string {
	if errors.Is(err, errEditorAborted) {
		return "editor"
	}
	return ""
}

// buildAndInstall runs fetch, extract, review, plan, build and install for one
// AUR package inside a workspace that is removed however it ends.
func (o *Orchestrator) buildAndInstall(ctx context.Context, name string, force bool) error {
	archive, err := o.snapshots.Fetch(ctx, name)
	if err != nil {
		return stageErr(name, "fetch", err)
	}
	if err := checkSnapshotLayout(archive, name); err != nil {
		return stageErr(name, "extract", err)
	}

	if err := os.MkdirAll(o.cfg.BuildDir, 0o755); err != nil {
		return stageErr(name, "extract", err)
	}
	ws, err := os.MkdirTemp(o.cfg.BuildDir, "yao-"+name+"-")
	if err != nil {
		return stageErr(name, "extract", err)
	}
	defer func() {
		if err := os.RemoveAll(ws); err != nil {
			o.log.Warn("failed to remove workspace", "path", ws, "error", err)
		}
	}()

	if err := o.extractor.Extract(ctx, archive, ws); err != nil {
		return stageErr(name, "extract", err)
	}
	buildDir := filepath.Join(ws, name)
	if fi, err := os.Stat(buildDir); err != nil || !fi.IsDir() {
		return stageErr(name, "extract", fmt.Errorf("%w: unexpected snapshot layout, %s/ missing", ErrExtractionFailed, name))
	}

	recipe := filepath.Join(buildDir, "PKGBUILD")
	if o.reviewer != nil {
		if fileExists(recipe) {
			ok, err := o.reviewer.Review(ctx, recipe)
			if err != nil {
				return stageErr(name, "review", err)
			}
			if !ok {
				return errEditorAborted
			}
		} else {
			o.log.Debug("no PKGBUILD found", "dir", buildDir)
		}
	}

	set, reuse, err := o.planner.Plan(ctx, buildDir, o.cfg.PkgDest, force)
	if err != nil {
		return stageErr(name, "plan", err)
	}

	digest, digestErr := recipeDigest(recipe)
	if digestErr != nil {
		o.log.Debug("no recipe digest", "pkg", name, "error", digestErr)
	}

	if reuse {
		o.log.Debug("using existing package files, skipping rebuild", "pkg", name)
		o.warnIfStale(name, digest)
	} else {
		o.ui.Step("Building %s (makepkg)...", name)
		set, err = o.builder.Build(ctx, buildDir, o.cfg.PkgDest, set, force)
		if err != nil {
			return stageErr(name, "build", err)
		}
		if digestErr == nil && o.stamps != nil {
			if err := o.stamps.Record(name, digest, set); err != nil {
				o.log.Warn("failed to record build stamp", "pkg", name, "error", err)
			}
		}
	}

	o.ui.Step("Installing %s", name)
	for _, f := range set {
		if info, err := ReadPkgInfo(f); err == nil {
			o.ui.Line("   %s", info)
		} else {
			o.log.Debug("cannot read package metadata", "path", f, "error", err)
		}
	}
	if err := o.installer.InstallFiles(ctx, set); err != nil {
		if errors.Is(err, ErrUserDeclined) {
			return err
		}
		return stageErr(name, "install", err)
	}
	return nil
}

// warnIfStale warns when reused artifacts were recorded against another recipe.
func (o *Orchestrator) warnIfStale(name, digest string) {
	if o.stamps == nil || digest == "" {
		return
	}
	st, ok, err := o.stamps.Get(name)
	if err != nil {
		o.log.Debug("cannot read build stamps", "error", err)
		return
	}
	if ok && st.Recipe != digest {
		o.ui.Warn("%s: PKGBUILD changed since the existing packages were built; use -f to rebuild", name)
	}
}

// Get unpacks the recipe tree of each AUR package into <workDir>/<name>,
// replacing whatever is there.
func (o *Orchestrator) Get(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return errNoPackages
	}
	for _, name := range uniqueNames(names) {
		if err := o.getOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) getOne(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	ok, err := o.catalog.Exists(ctx, name)
	if err != nil {
		return stageErr(name, "lookup", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s not found in AUR", ErrNotFound, name)
	}

	archive, err := o.snapshots.Fetch(ctx, name)
	if err != nil {
		return stageErr(name, "fetch", err)
	}
	if err := checkSnapshotLayout(archive, name); err != nil {
		return stageErr(name, "extract", err)
	}

	// unpack next to the destination so the final rename stays on one filesystem
	tmp, err := os.MkdirTemp(o.workDir, ".yao-"+name+"-")
	if err != nil {
		return stageErr(name, "extract", err)
	}
	defer os.RemoveAll(tmp)

	if err := o.extractor.Extract(ctx, archive, tmp); err != nil {
		return stageErr(name, "extract", err)
	}
	src := filepath.Join(tmp, name)
	if fi, err := os.Stat(src); err != nil || !fi.IsDir() {
		return stageErr(name, "extract", fmt.Errorf("%w: unexpected snapshot layout, %s/ missing", ErrExtractionFailed, name))
	}

	dst := filepath.Join(o.workDir, name)
	if err := os.RemoveAll(dst); err != nil {
		return stageErr(name, "save", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return stageErr(name, "save", err)
	}
	o.ui.Step("PKGBUILD for %s saved to ./%s", name, name)
	return nil
}
