package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voicelyapp/voicely-cli/internal/client/api"
	"github.com/voicelyapp/voicely-cli/internal/client/config"
	"github.com/voicelyapp/voicely-cli/internal/client/flow"
	"github.com/voicelyapp/voicely-cli/internal/client/notifications"
	"github.com/voicelyapp/voicely-cli/internal/client/repositories/credentials"
	"github.com/voicelyapp/voicely-cli/internal/client/store"
	"github.com/voicelyapp/voicely-cli/internal/filex"
	"github.com/voicelyapp/voicely-cli/internal/logging"
)

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// event is one machine notification queued for the run loop.
type event struct {
	step  flow.Step
	kind  flow.ErrorKind
	isErr bool
}

// App drives the onboarding wizard in a terminal.
type App struct {
	cfg     *config.Config
	api     api.Client
	creds   credentials.Repository
	machine *flow.Machine
	db      *sql.DB
	reader  *bufio.Reader
	out     io.Writer
	log     logging.Logger

	events chan event
	step   flow.Step
	mode   Mode // touched only by the online status watcher
}

// NewApp wires the full client: local database, credential repository,
// HTTP API client, permission requester and the flow machine.
func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	dir, err := filex.EnsureSubDir(".voicely")
	if err != nil {
		return nil, err
	}

	db, err := store.InitDatabase(ctx, filepath.Join(dir, cfg.DatabasePath))
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	creds := credentials.NewSQLiteRepository(db)
	deviceID, err := creds.DeviceID(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	apiClient := api.NewHTTPClient(cfg.APIBaseURL, cfg.RequestTimeout, deviceID, log)

	reader := bufio.NewReader(os.Stdin)
	requester := notifications.NewTerminalRequester(reader, os.Stdout)

	app := newApp(cfg, apiClient, creds, requester, reader, os.Stdout, log)
	app.db = db
	return app, nil
}

// newApp assembles an App from explicit collaborators; tests use it to
// inject fakes.
func newApp(cfg *config.Config, apiClient api.Client, creds credentials.Repository, requester notifications.Requester, reader *bufio.Reader, out io.Writer, log logging.Logger) *App {
	app := &App{
		cfg:    cfg,
		api:    apiClient,
		creds:  creds,
		reader: reader,
		out:    out,
		log:    log,
		events: make(chan event, 8),
	}
	app.machine = flow.NewMachine(app, apiClient, creds, requester, log)
	return app
}

// PresentStep implements flow.Output.
func (a *App) PresentStep(step flow.Step) {
	a.events <- event{step: step}
}

// PresentError implements flow.Output.
func (a *App) PresentError(kind flow.ErrorKind) {
	a.events <- event{kind: kind, isErr: true}
}

// Run executes the wizard until the user is logged in, quits, or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		_ = a.api.Close()
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	restored, err := a.restoreSession(ctx)
	if err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
	}
	if restored {
		return nil
	}

	go a.startOnlineStatusWatcher(ctx, a.cfg.OnlineCheckInterval)

	a.step = flow.StepGetStarted
	a.render(a.step)

	for {
		quit, err := a.prompt(ctx, a.step)
		if err != nil {
			a.machine.Close()
			return err
		}
		if quit {
			a.machine.Close()
			fmt.Fprintln(a.out, "Bye!")
			return nil
		}

		done, err := a.handleEvents(ctx)
		if err != nil {
			a.machine.Close()
			return err
		}
		if done {
			return nil
		}
	}
}

// restoreSession short-circuits onboarding when an unexpired credential is
// already stored. The user may explicitly log out to run the wizard again.
func (a *App) restoreSession(ctx context.Context) (bool, error) {
	cred, err := a.creds.Load(ctx)
	if err != nil {
		return false, err
	}
	if cred == nil || cred.ExpiresAt <= time.Now().Unix() {
		return false, nil
	}

	text, err := GetSimpleText(a.reader,
		fmt.Sprintf("Welcome back, %s! Press Enter to continue or type 'logout' to sign out.", cred.User.Username),
		a.out)
	if err != nil {
		return false, err
	}
	if text == "logout" {
		if err := a.creds.Clear(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(a.out, "Signed out.")
		return false, nil
	}
	return true, nil
}

func (a *App) setMode(mode Mode) {
	if a.mode != mode {
		a.mode = mode
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
}

// startOnlineStatusWatcher periodically probes the backend and logs
// connectivity changes.
func (a *App) startOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.api.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
