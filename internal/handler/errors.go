package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskgun/internal/middleware"
	"github.com/hitoshi/taskgun/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// JSON APIのエンドポイントで使う。
func handleServiceError(w http.ResponseWriter, err error) {
	var fieldErrs model.FieldErrors
	if errors.As(err, &fieldErrs) {
		middleware.WriteFormErrorResponse(w, http.StatusBadRequest, "", fieldErrs)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部エラーとして扱い、詳細はログのみに残す
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// handleFormError はフォーム送信のエラーを{formError, fieldErrors}形式で返す。
// 入力やドメインのエラーは400、ストア障害は汎用メッセージの500とする。
func handleFormError(w http.ResponseWriter, err error) {
	var fieldErrs model.FieldErrors
	if errors.As(err, &fieldErrs) {
		middleware.WriteFormErrorResponse(w, http.StatusBadRequest, "", fieldErrs)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code != model.ErrCodeUnexpectedStore {
		middleware.WriteFormErrorResponse(w, http.StatusBadRequest, apiErr.Message, nil)
		return
	}

	slog.Error("form submission failed", slog.String("error", err.Error()))
	middleware.WriteFormErrorResponse(w, http.StatusInternalServerError, model.ErrUnexpectedStore.Message, nil)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound, model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials, model.ErrCodeSignInRequired:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidToken, model.ErrCodeTokenExpired,
		model.ErrCodeValidation, model.ErrCodeUnknownIntent:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
