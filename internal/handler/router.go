package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskgun/internal/metrics"
	"github.com/hitoshi/taskgun/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	CookieDomain      string
	CookieSecure      bool

	// 運用
	HealthChecker   HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// セッションと認可
	Sessions SessionManager
	Gate     AuthGate

	// ドメインサービス
	UserService UserServiceInterface
	TaskService TaskServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → CORS → SessionContext → Logging → Metrics → Recovery → SecurityHeaders
//
// タスク一覧と退会はサインイン必須、認証フォームはサインイン済みなら "/" へリダイレクトする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var collector metrics.MetricsCollector = metrics.NopCollector{}
	if deps.Metrics != nil {
		collector = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionContextMiddleware(deps.Gate))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CookieSecure))

	authHandler := NewAuthHandler(deps.UserService, deps.Sessions, collector)
	userHandler := NewUserHandler(deps.UserService, deps.Sessions, deps.Gate, collector)
	taskHandler := NewTaskHandler(deps.TaskService, deps.Gate, collector)
	themeHandler := NewThemeHandler(ThemeHandlerConfig{
		CookieDomain: deps.CookieDomain,
		CookieSecure: deps.CookieSecure,
	})

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- サインイン不要のルート ---
	r.Get("/api/me", userHandler.Me)
	r.Post("/theme", themeHandler.SetTheme)
	r.Post("/signout", authHandler.Signout)

	r.Route("/resources", func(r chi.Router) {
		r.Post("/theme", themeHandler.SetTheme)
		r.Post("/signout", authHandler.Signout)
		r.With(middleware.NewRequireSignInMiddleware(deps.Gate)).Post("/delete-account", userHandler.DeleteAccount)
	})

	// 認証フォーム（サインイン済みユーザーはトップへ）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRedirectIfSignedInMiddleware(deps.Gate, "/"))

		r.Post("/signup", authHandler.Signup)
		r.Post("/signin", authHandler.Signin)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
	})

	// --- サインイン必須のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireSignInMiddleware(deps.Gate))

		// "/" はタスク一覧のインデックス
		r.Get("/", taskHandler.ListTasks)
		r.Post("/", taskHandler.HandleIntent)
		r.Get("/todos", taskHandler.ListTasks)
		r.Post("/todos", taskHandler.HandleIntent)

		r.Post("/delete-account", userHandler.DeleteAccount)
	})

	return r
}
