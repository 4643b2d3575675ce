package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/partsdesk/internal/client/autherr"
	"github.com/dmitrijs2005/partsdesk/internal/client/client"
	"github.com/dmitrijs2005/partsdesk/internal/client/config"
	"github.com/dmitrijs2005/partsdesk/internal/client/credentials"
	"github.com/dmitrijs2005/partsdesk/internal/client/form"
	"github.com/dmitrijs2005/partsdesk/internal/client/notify"
	"github.com/dmitrijs2005/partsdesk/internal/client/preserve"
	"github.com/dmitrijs2005/partsdesk/internal/client/reauth"
	"github.com/dmitrijs2005/partsdesk/internal/client/recovery"
	"github.com/dmitrijs2005/partsdesk/internal/client/session"
	"github.com/dmitrijs2005/partsdesk/internal/client/storage"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/filex"
	"github.com/dmitrijs2005/partsdesk/internal/logging"
)

const startLocation = "/dashboard"

// gatewayDialOptions is a test seam for reaching an in-process gateway.
var gatewayDialOptions []grpc.DialOption

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	reader *bufio.Reader
	sched  clock.Scheduler

	db  *sql.DB
	kv  storage.SessionStore
	api client.Client
	web *http.Client
	gw  *grpc.ClientConn

	draft    *form.MemoryAdapter
	notes    *notify.Center
	preserve *preserve.Store
	reporter *autherr.Reporter
	session  *session.Manager
	recovery *recovery.Orchestrator
	prompt   *reauth.Prompt

	unsubscribe []func()
}

// NewApp opens local state and wires the session components together.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	if _, err := filex.EnsureParentDir(c.StateDBPath); err != nil {
		log.Error(ctx, "error preparing state directory", "error", err)
		return nil, err
	}

	db, err := credentials.OpenDatabase(ctx, c.StateDBPath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	var kv storage.SessionStore
	if c.RedisAddr != "" {
		kv, err = storage.NewRedisStore(ctx, c.RedisAddr, "partsdesk:")
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	} else {
		kv = storage.NewMemoryStore(nil)
	}

	api := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout, log)
	return newApp(c, log, clock.NewReal(), db, kv, api, bufio.NewReader(os.Stdin), os.Stdout), nil
}

func newApp(c *config.Config, log logging.Logger, sched clock.Scheduler, db *sql.DB, kv storage.SessionStore, api client.Client, in *bufio.Reader, out io.Writer) *App {
	a := &App{config: c, log: log, out: out, reader: in, sched: sched, db: db, kv: kv, api: api}

	a.draft = form.NewMemoryAdapter(startLocation)
	a.notes = notify.NewCenter(sched, notify.Options{
		Cap:             c.NotificationCap,
		DefaultDuration: c.NotificationDuration,
		Logger:          log,
	})
	a.preserve = preserve.New(kv, a.draft, sched, preserve.Options{
		TTL:      c.SnapshotTTL,
		Debounce: c.AutoPreserveDebounce,
		Logger:   log,
	})
	a.reporter = autherr.New(sched, a.notes, a.preserve, a.draft, a.draft, autherr.Options{
		DedupWindow:  c.DedupWindow,
		HistorySize:  c.ErrorHistorySize,
		RestoreDelay: c.RestoreDelay,
		Logger:       log,
	})
	a.session = session.New(credentials.New(db, log), api, sched, session.Options{
		RefreshInterval: c.RefreshInterval,
		RefreshMargin:   c.RefreshMargin,
		Logger:          log,
		Notifier:        a.notes,
	})
	a.recovery = recovery.New(sched, a.session, a.reporter, a.notes, log,
		recovery.WithMaxRetries(c.RecoveryMaxRetries),
		recovery.WithRetryDelay(c.RecoveryRetryDelay),
	)
	a.prompt = reauth.New(a.session, sched, reauth.Options{
		MaxAttempts: c.LockoutAttempts,
		Cooldown:    c.LockoutCooldown,
		Logger:      log,
		OnSuccess: func(ctx context.Context) {
			if err := a.reporter.HandleRecovery(ctx); err != nil {
				a.log.Error(ctx, "restore after reauthentication", "error", err)
			}
			a.notes.Show(notify.SessionRecovered())
		},
		OnClose: a.reporter.CloseReauth,
	})

	a.reporter.SetReauthOpener(func(url string, data map[string]any) {
		a.prompt.Open(url, data)
		fmt.Fprintln(a.out, "Re-authentication required, type 'reauth' to continue.")
	})
	a.reporter.SetRetryHandler(func() {
		go a.recovery.RecoverFromNetworkError(context.Background())
	})

	a.web = &http.Client{
		Timeout:   c.RequestTimeout,
		Transport: &client.Transport{Tokens: a.session, Reporter: a.reporter, Log: log},
	}
	if c.GRPCAddr != "" {
		conn, err := client.DialGRPC(c.GRPCAddr, a.session, a.reporter, gatewayDialOptions...)
		if err != nil {
			log.Error(context.Background(), "gateway disabled", "error", err)
		} else {
			a.gw = conn
		}
	}
	return a
}

// Run rehydrates the session and serves the REPL until exit or EOF.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.session.Init(ctx)
	a.watch()

	fmt.Fprintln(a.out, "partsdesk session shell (type 'help' for commands)")
	if s := a.session.Session(); s != nil {
		fmt.Fprintf(a.out, "Welcome back, %s.\n", s.FullName)
	}
	if info, err := a.preserve.Info(ctx); err == nil && info != nil && !info.Expired {
		fmt.Fprintf(a.out, "Unsaved form data from %s is waiting (%d fields), type 'restore'.\n", info.URL, info.FieldsCount)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close tears down every timer owner and releases storage.
func (a *App) Close() {
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.unsubscribe = nil

	a.preserve.StopAutoPreserve()
	a.recovery.Dispose()
	a.session.Dispose()
	a.reporter.Dispose()
	a.prompt.Dispose()
	a.notes.Dispose()

	if a.web != nil {
		a.web.CloseIdleConnections()
	}
	if a.gw != nil {
		if err := a.gw.Close(); err != nil {
			a.log.Warn(context.Background(), "close gateway connection", "error", err)
		}
	}
	if err := a.api.Close(); err != nil {
		a.log.Warn(context.Background(), "close api client", "error", err)
	}
	if err := a.kv.Close(); err != nil {
		a.log.Warn(context.Background(), "close session store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn(context.Background(), "close state db", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

func (a *App) getStatus() string {
	s := "guest"
	if sess := a.session.Session(); sess != nil {
		s = fmt.Sprintf("%s %s", sess.Email, sess.Role)
	}
	if a.prompt.IsOpen() {
		s += " reauth"
	}
	return fmt.Sprintf("(%s %s)", s, a.draft.Location())
}
