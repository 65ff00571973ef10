package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/coursecrm/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードとHTTPステータスの対応表。
// 載っていないコードは500として扱う。
var statusByCode = map[string]int{
	model.ErrCodeUnauthenticated:        http.StatusUnauthorized,
	model.ErrCodeInvalidCredentials:     http.StatusUnauthorized,
	model.ErrCodeForbidden:              http.StatusForbidden,
	model.ErrCodeUserNotFound:           http.StatusNotFound,
	model.ErrCodeCourseNotFound:         http.StatusNotFound,
	model.ErrCodeEmailAlreadyRegistered: http.StatusConflict,
	model.ErrCodeValidationFailed:       http.StatusBadRequest,
	model.ErrCodeInvalidRequest:         http.StatusBadRequest,
	model.ErrCodeRateLimited:            http.StatusTooManyRequests,
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteAPIError はエラーコードから決まるステータスで統一エラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// WriteErrorResponse は指定ステータスで統一エラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}); err != nil {
		slog.Warn("failed to write error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は500の統一レスポンスを書き込む。
// 原因はログのみに残し、クライアントには定型メッセージだけを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
