package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joeydtaylor/steeze-ipcm/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-ipcm/pkg/console"
	"github.com/joeydtaylor/steeze-ipcm/pkg/core"
	"github.com/joeydtaylor/steeze-ipcm/pkg/electrician"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"github.com/joeydtaylor/steeze-ipcm/pkg/manifest"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-ipcm/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ---------- Options ----------

type Config struct {
	Service         string // for logs only
	ManifestEnv     string // IPCM_MANIFEST
	DefaultManifest string // ipcm.toml
	AdminListenEnv  string // overrides [admin].address
	ConsoleEnv      string // overrides [console].address
	TLSCertEnv      string // SSL_SERVER_CERTIFICATE
	TLSKeyEnv       string // SSL_SERVER_KEY
}

type Option func(*Config)

func WithService(s string) Option            { return func(c *Config) { c.Service = s } }
func WithManifestEnv(k string) Option        { return func(c *Config) { c.ManifestEnv = k } }
func WithDefaultManifest(path string) Option { return func(c *Config) { c.DefaultManifest = path } }
func WithAdminListenEnv(k string) Option     { return func(c *Config) { c.AdminListenEnv = k } }
func WithConsoleEnv(k string) Option         { return func(c *Config) { c.ConsoleEnv = k } }
func WithTLSCertKeyEnv(cert, key string) Option {
	return func(c *Config) { c.TLSCertEnv, c.TLSKeyEnv = cert, key }
}

func defaultConfig() Config {
	return Config{
		Service:         "ipcmd",
		ManifestEnv:     "IPCM_MANIFEST",
		DefaultManifest: "ipcm.toml",
		AdminListenEnv:  "IPCM_ADMIN_ADDRESS",
		ConsoleEnv:      "IPCM_CONSOLE_ADDRESS",
		TLSCertEnv:      "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:       "SSL_SERVER_KEY",
	}
}

// Module returns the complete ipcmd option set.
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return fx.Options(
		// Core middleware
		bundlefx.Module,
		// Router impl
		fx.Provide(httpx.NewChi),
		// Config into DI
		fx.Provide(func() Config { return cfg }),
		fx.Provide(provideManifest),
		// Domain
		fx.Provide(electrician.RelayOptionsFromEnv),
		fx.Provide(providePublisher),
		fx.Provide(provideManager),
		fx.Provide(provideConsole),
		fx.Provide(fx.Annotate(provideRouter, fx.ResultTags(`name:"app"`))),
		// Lifecycle
		fx.Invoke(registerHooks),
	)
}

func provideManifest(cfg Config, zl *zap.Logger) (manifest.Config, error) {
	path := envOr(cfg.ManifestEnv, cfg.DefaultManifest)
	man, err := core.LoadConfig(path)
	if err != nil {
		zl.Error("manifest load failed", zap.Error(err), zap.String("path", path))
		return manifest.Config{}, err
	}
	if v := os.Getenv(cfg.AdminListenEnv); v != "" {
		man.Admin.Address = v
	}
	if v := os.Getenv(cfg.ConsoleEnv); v != "" {
		man.Console.Address = v
	}
	return man, nil
}

// ---------- Relay ----------

func providePublisher(lc fx.Lifecycle, o electrician.RelayOptions, zl *zap.Logger) (electrician.Publisher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	pub, err := electrician.NewForwardPublisher(ctx, o)
	if err != nil {
		cancel()
		return nil, err
	}
	if len(o.Targets) == 0 {
		zl.Info("no ELECTRICIAN_TARGET; shim-relay SDUs are dropped")
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pub.Close()
			cancel()
			return nil
		},
	})
	return pub, nil
}

// ---------- Manager ----------

type managerDeps struct {
	fx.In
	LC       fx.Lifecycle
	Manifest manifest.Config
	Logger   *zap.Logger
	Pub      electrician.Publisher
	Relay    electrician.RelayOptions
}

// provideManager builds the manager and provisions it from the manifest on
// start. On stop everything still alive is torn down.
func provideManager(d managerDeps) (*kipcm.Manager, error) {
	m, err := kipcm.Init(
		kipcm.WithLogger(d.Logger.Named("kipcm")),
		kipcm.WithDefaultFactory(d.Manifest.Manager.DefaultFactory),
		kipcm.WithQueueCapacity(d.Manifest.Manager.QueueCapacity),
		kipcm.WithLockDebug(d.Manifest.Manager.LockDebug),
	)
	if err != nil {
		return nil, err
	}
	d.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			relay := core.Relay{Publisher: d.Pub, Timeout: d.Relay.PublishTimeout}
			return core.Provision(m, d.Manifest, relay, d.Logger)
		},
		OnStop: func(context.Context) error {
			return m.Shutdown()
		},
	})
	return m, nil
}

func provideConsole(man manifest.Config, m *kipcm.Manager, zl *zap.Logger) *console.Console {
	c := console.New(
		console.WithAddress(man.Console.Address),
		console.WithBufferSize(man.Console.BufferSize),
		console.WithLogger(zl.Named("console")),
	)
	core.RegisterCommands(c, m)
	return c
}

// ---------- Router ----------

type routerDeps struct {
	fx.In

	Manifest manifest.Config
	Manager  *kipcm.Manager
	AuthMW   *auth.Middleware
	LogMW    *logger.Middleware
	Metrics  http.Handler `name:"metrics"`
	R        httpx.Router
	Log      *zap.Logger
}

func provideRouter(d routerDeps) http.Handler {
	return core.BuildRouter(core.BuildDeps{
		Manager:     d.Manager,
		Auth:        d.AuthMW,
		LogMW:       d.LogMW,
		Metrics:     d.Metrics,
		Router:      d.R,
		Log:         d.Log,
		RequireAuth: d.Manifest.Admin.RequireAuth,
	})
}

// ---------- Lifecycle (console + HTTP server) ----------

type serverDeps struct {
	fx.In
	Opts     Config
	Manifest manifest.Config
	Logger   *zap.Logger
	Console  *console.Console
	App      http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	addr := d.Manifest.Admin.Address
	cert := os.Getenv(d.Opts.TLSCertEnv)
	key := os.Getenv(d.Opts.TLSKeyEnv)

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if d.Manifest.Console.Enabled() {
				if err := d.Console.Start(); err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				if d.Manifest.Console.Enabled() {
					_ = d.Console.Stop(context.Background())
				}
				return err
			}
			if useTLS {
				d.Logger.Info("admin server starting (TLS)", zap.String("service", d.Opts.Service), zap.String("addr", addr), zap.String("cert", cert))
				go func() {
					if err := srv.ServeTLS(ln, cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Error("admin server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("admin server starting (PLAINTEXT)", zap.String("service", d.Opts.Service), zap.String("addr", addr))
				srv.TLSConfig = nil
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Error("admin server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("admin server stopping")
			err := srv.Shutdown(ctx)
			if d.Manifest.Console.Enabled() {
				err = multierr.Append(err, d.Console.Stop(ctx))
			}
			return err
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
