package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/roach88/rollbook/internal/auth"
	"github.com/roach88/rollbook/internal/config"
	"github.com/roach88/rollbook/internal/editreq"
	"github.com/roach88/rollbook/internal/record"
	"github.com/roach88/rollbook/internal/store"
)

// app is the set of services one command invocation works with.
type app struct {
	cfg      *config.Config
	store    *store.Store
	auth     *auth.Service
	requests *editreq.Workflow
	logger   *slog.Logger
	opts     *RootOptions

	bootstrap auth.BootstrapResult
}

// openApp loads configuration, opens the database and seeds the default
// admin on first use. The caller must call close.
func openApp(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logger := newLogger(cfg.Log, opts.Verbose, logOut)

	clock := opts.Clock
	if clock == nil {
		clock = record.SystemClock{}
	}

	st, err := store.Open(cfg.Database.Path, store.WithClock(clock))
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", "path", cfg.Database.Path)

	svc, err := auth.New(st,
		auth.WithCost(cfg.Auth.BcryptCost),
		auth.WithDefaultAdmin(cfg.Auth.DefaultAdmin.Username, cfg.Auth.DefaultAdmin.Password),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	boot, err := svc.Bootstrap(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	if boot.DefaultAdminCreated {
		logger.Warn("default admin account created; change its password", "username", boot.Username)
	}

	return &app{
		cfg:       cfg,
		store:     st,
		auth:      svc,
		requests:  editreq.New(st, clock),
		logger:    logger,
		opts:      opts,
		bootstrap: boot,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// newLogger builds the diagnostic logger. --verbose forces debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// password returns --password, or $ROLLBOOK_PASSWORD when the flag is empty.
func (o *RootOptions) password() string {
	if o.Password != "" {
		return o.Password
	}
	return os.Getenv(PasswordEnv)
}

// login authenticates --user and requires one of roles.
func (a *app) login(ctx context.Context, roles ...record.Role) (auth.Result, error) {
	if a.opts.User == "" {
		return auth.Result{}, NewExitError(ExitCommandError, "--user is required")
	}
	res, err := a.auth.Authenticate(ctx, a.opts.User, a.opts.password())
	if err != nil {
		return auth.Result{}, err
	}
	if !res.OK {
		a.logger.Info("login failed", "username", a.opts.User)
		return auth.Result{}, record.Errorf(record.ErrCodeAuth, "invalid username or password")
	}
	if !slices.Contains(roles, res.Role) {
		return auth.Result{}, record.Errorf(record.ErrCodeAuthorization,
			"account %q is registered as %q; this command needs %v", res.Username, res.Role, roles)
	}
	if res.MustChangePassword {
		a.logger.Warn("password change required", "username", res.Username)
	}
	return res, nil
}

// ownStudentID resolves which student a student-or-admin command targets.
// Students may only name themselves; admins must name someone.
func ownStudentID(res auth.Result, requested string) (string, error) {
	if res.Role == record.RoleAdmin {
		if requested == "" {
			return "", NewExitError(ExitCommandError, "--student is required for admin accounts")
		}
		return requested, nil
	}
	if res.StudentID == "" {
		return "", record.Errorf(record.ErrCodeAuthorization, "account %q is not linked to a student", res.Username)
	}
	if requested != "" && requested != res.StudentID {
		return "", record.Errorf(record.ErrCodeAuthorization, "students may only act on their own record")
	}
	return res.StudentID, nil
}
