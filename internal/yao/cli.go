package yao

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

type cliOptions struct {
	sync    bool
	get     bool
	force   bool
	verbose bool
}

// env is the process environment seen by the CLI; tests replace it.
type env struct {
	stdin    io.Reader
	stderr   io.Writer
	getenv   func(string) string
	lookPath func(string) (string, error)
	euid     func() int
	workDir  string
}

func newLogger(w io.Writer, verbose bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "yao",
		Level:  level,
		Output: w,
		Color:  hclog.AutoColor,
	})
}

func newRootCmd(e env) *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           "yao (-S | -G) [flags] <pkg>...",
		Short:         "Fast minimal AUR + repo helper",
		Long:          "yao installs packages from the sync repositories with pacman, and builds\nAUR packages with makepkg before handing them to pacman.",
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), e, opts, args)
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&opts.sync, "sync", "S", false, "Sync/install packages from the repositories or the AUR, like pacman -S")
	f.BoolVarP(&opts.get, "get", "G", false, "Get PKGBUILD snapshot(s) into ./<pkg>/")
	f.BoolVarP(&opts.force, "force", "f", false, "Force rebuild, removing previously built package files")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Print executed commands and resolved configuration")
	cmd.MarkFlagsMutuallyExclusive("sync", "get")
	cmd.MarkFlagsOneRequired("sync", "get")
	cmd.SetErr(e.stderr)
	cmd.SetOut(e.stderr)
	return cmd
}

func run(ctx context.Context, e env, opts *cliOptions, names []string) error {
	ui := NewUI(e.stderr)
	log := newLogger(e.stderr, opts.verbose)

	cfg, err := LoadConfig(configPath(e.getenv), e.getenv)
	if err != nil {
		return err
	}
	cfg.Verbose = opts.verbose

	priv := NewPrivilege(cfg.Sudo)
	priv.EUID = e.euid
	cfg.Log(log, priv.EUID())

	wf := WorkflowSync
	if opts.get {
		wf = WorkflowGet
	}
	tools, err := ResolveTools(cfg, wf, priv.IsRoot(), e.lookPath, log)
	if err != nil {
		return err
	}
	if tools.Sudo != "" {
		priv.Elevator = tools.Sudo
	}

	runner := NewExecutor(log.Named("exec"))
	pacman := NewPacman(tools.Pacman, runner, priv, log.Named("pacman"))
	aur := NewAURClient(cfg.AURURL, log.Named("aur"))
	prompter := NewLinePrompter(e.stdin, ui)

	var reviewer Reviewer
	if cfg.Review {
		reviewer = NewRecipeReviewer(cfg.Editor, prompter, runner, ui, log.Named("review"))
	}

	o := NewOrchestrator(cfg, Deps{
		Repo:      pacman,
		Installer: pacman,
		Catalog:   aur,
		Snapshots: NewSnapshotCache(cfg.SnapshotCache, aur, log.Named("cache")),
		Extractor: NewBsdtar(tools.Bsdtar, runner, log.Named("extract")),
		BuildTool: NewMakepkg(tools.Makepkg, cfg.MakepkgConf, runner),
		Prompter:  prompter,
		Reviewer:  reviewer,
		Stamps:    NewStampStore(cfg.StateFile),
		UI:        ui,
		Log:       log,
		WorkDir:   e.workDir,
	})

	if opts.get {
		return o.Get(ctx, names)
	}
	outcome, err := o.Sync(ctx, names, opts.force)
	if err != nil {
		return err
	}
	log.Debug("sync finished", "outcome", outcome)
	return nil
}

// Main is the CLI entrypoint for cmd/yao. It returns the process exit status.
func Main() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := env{
		stdin:    os.Stdin,
		stderr:   os.Stderr,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		euid:     unix.Geteuid,
		workDir:  ".",
	}
	return execute(ctx, e, os.Args[1:])
}

func execute(ctx context.Context, e env, args []string) int {
	cmd := newRootCmd(e)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		NewUI(e.stderr).Error(err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
