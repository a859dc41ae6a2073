package handler

import (
	"net/http"

	"github.com/hitoshi/taskgun/internal/model"
)

const (
	themeCookieName = "theme"
	// themeCookieMaxAge はテーマCookieの有効期間（秒）。1年。
	themeCookieMaxAge = 60 * 60 * 24 * 365
)

// ThemeHandlerConfig はテーマハンドラーの設定。
type ThemeHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// ThemeHandler はテーマ設定のHTTPハンドラー。
type ThemeHandler struct {
	config ThemeHandlerConfig
}

// NewThemeHandler はThemeHandlerを生成する。
func NewThemeHandler(config ThemeHandlerConfig) *ThemeHandler {
	return &ThemeHandler{config: config}
}

// SetTheme はテーマ設定（light, dark, system）をCookieに保存する。
// POST /theme
func (h *ThemeHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	theme, ok := model.ParseThemeMode(r.PostFormValue("theme"))
	if !ok {
		handleServiceError(w, model.FieldErrors{"theme": "Theme must be one of light, dark or system."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     themeCookieName,
		Value:    string(theme),
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   themeCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "theme": theme})
}

// themeFromRequest はCookieのテーマ設定を返す。未設定・不正な値はsystemとして扱う。
func themeFromRequest(r *http.Request) model.ThemeMode {
	c, err := r.Cookie(themeCookieName)
	if err != nil {
		return model.ThemeSystem
	}
	theme, _ := model.ParseThemeMode(c.Value)
	return theme
}
