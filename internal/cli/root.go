// Package cli wires configuration, storage and the UI behind cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/autostop"
	"github.com/sadopc/worklog/internal/config"
	"github.com/sadopc/worklog/internal/logging"
	"github.com/sadopc/worklog/internal/notify"
	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
	"github.com/sadopc/worklog/internal/tui"
)

// app carries what every command needs once the root pre-run finished.
type app struct {
	cfg       *config.Config
	store     *store.Store
	logCloser io.Closer
	dbFlag    string
}

func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "worklog",
		Short:        "Track time against activities from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, cmd == cmd.Root())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.dbFlag, "db", "", "database file (overrides WORKLOG_DB)")

	root.AddCommand(
		a.newStopCmd(),
		a.newStatusCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
		a.newResetCmd(),
		a.newScheduleCmd(),
		a.newOffTimeCmd(),
		a.newProxyCmd(),
	)
	return root
}

// setup loads configuration, installs the logger and opens the store. The
// TUI owns the terminal, so its logs go to the configured file or nowhere.
func (a *app) setup(cmd *cobra.Command, tui bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dbFlag != "" {
		cfg.DBPath = a.dbFlag
	}
	a.cfg = cfg

	if tui && cfg.LogFile == "" {
		logging.Discard()
	} else {
		a.logCloser, err = logging.Setup(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.store = s
	log.Debug("database opened", "path", cfg.DBPath, "command", cmd.Name())

	if cfg.LegacySettings != "" {
		imported, err := s.ImportLegacySettings(cfg.LegacySettings)
		if err != nil {
			log.Warn("legacy settings import failed", "path", cfg.LegacySettings, "err", err)
		} else if imported {
			log.Info("imported legacy settings", "path", cfg.LegacySettings)
		}
	}
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
		a.logCloser = nil
	}
	return errors.Join(errs...)
}

func (a *app) newTracker() (*tracker.Tracker, error) {
	ts, err := a.store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	tr := tracker.New(a.store, tracker.LimitsFrom(ts))
	if _, err := tr.Resume(); err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return tr, nil
}

func (a *app) notifier() notify.Notifier {
	n := notify.Multi{notify.LogNotifier{}}
	if a.cfg.Telegram() {
		tg, err := notify.NewTelegram(a.cfg.TelegramToken, a.cfg.TelegramChatID)
		if err != nil {
			log.Warn("telegram notifications disabled", "err", err)
			return n
		}
		n = append(n, tg)
	}
	return n
}

func (a *app) runTUI(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tr, err := a.newTracker()
	if err != nil {
		return err
	}
	w := autostop.New(tr, a.store)
	ctx, cancel := w.Listen(ctx)
	defer cancel()

	model := tui.NewApp(a.store, tr, w, notify.NewAlerter(a.notifier(), a.store))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	_, runErr := p.Run()

	if _, err := w.OnClose(); err != nil {
		log.Error("auto-stop on exit", "err", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}
