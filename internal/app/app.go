package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/taskgun/internal/authz"
	"github.com/hitoshi/taskgun/internal/config"
	"github.com/hitoshi/taskgun/internal/database"
	"github.com/hitoshi/taskgun/internal/handler"
	"github.com/hitoshi/taskgun/internal/logger"
	"github.com/hitoshi/taskgun/internal/metrics"
	"github.com/hitoshi/taskgun/internal/repository"
	"github.com/hitoshi/taskgun/internal/security"
	"github.com/hitoshi/taskgun/internal/session"
	"github.com/hitoshi/taskgun/internal/task"
	"github.com/hitoshi/taskgun/internal/user"
	"github.com/hitoshi/taskgun/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする。レベルはConfig確定後に揃える
	level := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger.SetupDefault(w, level)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if parsed := logger.ParseLevel(cfg.LogLevel); parsed != level {
		logger.SetupDefault(w, parsed)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
func Run(w io.Writer, args []string) error {
	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// store はストレージドライバに応じて構築したリポジトリ群。
type store struct {
	users    repository.UserRepository
	tasks    repository.TaskRepository
	sessions repository.SessionRepository
	health   handler.HealthChecker
	close    func() error
}

// openStore はConfigのドライバに従ってリポジトリ群を構築する。
// memoryドライバはプロセス内で完結し、ヘルスチェック対象を持たない。
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		mem := repository.NewMemoryStore()
		slog.Warn("using in-memory store; data is lost on restart")
		return &store{
			users:    mem,
			tasks:    mem,
			sessions: mem.SessionStore(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &store{
		users:    repository.NewPostgresUserRepo(db),
		tasks:    repository.NewPostgresTaskRepo(db),
		sessions: repository.NewPostgresSessionRepo(db),
		health:   db,
		close:    db.Close,
	}, nil
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
func newHandler(cfg *config.Config, st *store, reg *prometheus.Registry) http.Handler {
	sessions := session.NewManager(st.sessions, session.Config{
		Secret:     []byte(cfg.SessionSecret),
		CookieName: cfg.SessionCookieName,
		MaxAge:     cfg.SessionMaxAge,
		Secure:     cfg.CookieSecure,
		Domain:     cfg.CookieDomain,
	})

	userService := user.NewService(st.users, st.sessions, user.ServiceConfig{
		ResetTokenTTL: cfg.ResetTokenTTL,
	})
	taskService := task.NewService(st.users, st.tasks, security.NewTextSanitizer(), nil)
	gate := authz.NewGate(sessions, userService)

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,

		HealthChecker:   st.health,
		Metrics:         metrics.NewCollector(reg),
		MetricsGatherer: reg,

		Sessions: sessions,
		Gate:     gate,

		UserService: userService,
		TaskService: taskService,
	})
}

// newRegistry はプロセスとGoランタイムのコレクタを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newHandler(cfg, st, newRegistry()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("storage_driver", cfg.StorageDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen failed: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// downが正の場合はその段数だけロールバックし、それ以外は未適用分をすべて適用する。
func runMigrate(cfg *config.Config, down int) error {
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("migrate requires the %s storage driver, got %q", config.StorageDriverPostgres, cfg.StorageDriver)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("down", down),
	)

	if down > 0 {
		if err := database.RollbackMigrations(cfg.DatabaseURL, down); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runCleanup は保持期間を過ぎた期限切れセッションを一度だけ削除する。
// cronなどの外部スケジューラから呼び出す想定。
func runCleanup(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("cleanup requires the %s storage driver, got %q", config.StorageDriverPostgres, cfg.StorageDriver)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(db, slog.Default())
	job.Retention = cfg.SessionRetention

	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
