// Пакет errors — ответы API ExaDocs с ошибками.
//
// Тело: {"error": {"code": "...", "message": "...", "fields": {...}}}.
// fields заполняется только для VALIDATION_ERROR из проверки тела запроса:
// ключ — имя поля в JSON, значение — причина (фронтенд подсвечивает поле формы).
package errors

import (
	"encoding/json"
	"net/http"
)

const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Body — тело ответа с ошибкой. Экспортировано для тестов клиентов API.
type Body struct {
	Error Detail `json:"error"`
}

// Detail — код, сообщение и ошибки по полям.
type Detail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusByCode — HTTP-статус для каждого кода.
var statusByCode = map[string]int{
	CodeValidationError: http.StatusBadRequest,
	CodeUnauthorized:    http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeConflict:        http.StatusConflict,
	CodeInternalError:   http.StatusInternalServerError,
}

// Write пишет ошибку; статус выводится из кода, неизвестный код — 500.
func Write(w http.ResponseWriter, d Detail) {
	status, ok := statusByCode[d.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: d})
}

// ValidationError — 400.
func ValidationError(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeValidationError, Message: message})
}

// ValidationFields — 400 с причинами по полям формы.
func ValidationFields(w http.ResponseWriter, message string, fields map[string]string) {
	Write(w, Detail{Code: CodeValidationError, Message: message, Fields: fields})
}

func NotFound(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeNotFound, Message: message})
}

// Unauthorized — 401: нет токена или токен не прошёл проверку.
func Unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="exadocs"`)
	Write(w, Detail{Code: CodeUnauthorized, Message: message})
}

// Forbidden — 403: предикат rbac вернул false.
func Forbidden(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeForbidden, Message: message})
}

// Conflict — 409: дубликат оценки или названия, устаревший статус жалобы,
// удаление используемой записи справочника.
func Conflict(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeConflict, Message: message})
}

func InternalError(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeInternalError, Message: message})
}
