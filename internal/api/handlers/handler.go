// handler.go — основной обработчик API ExaDocs.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "github.com/jorcase/exadocs/internal/api/errors"
	"github.com/jorcase/exadocs/internal/api/middleware"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/service"
)

// maxBodyBytes — предельный размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// Services — сервисный слой, которому делегируют обработчики.
type Services struct {
	Users         *service.UserService
	Files         *service.FileService
	Review        *service.ReviewService
	Comments      *service.CommentService
	Ratings       *service.RatingService
	Reports       *service.ReportService
	Notifications *service.NotificationService
	Profiles      *service.ProfileService
	Catalog       *service.CatalogService
	Audit         *service.AuditService
	Export        *service.ExportService
}

// APIHandler — основной обработчик API ExaDocs.
type APIHandler struct {
	health   *HealthHandler
	svc      Services
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:   health,
		svc:      svc,
		validate: newValidator(),
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — проверка liveness (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка readiness (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// newValidator создаёт валидатор DTO; в сообщениях используется имя поля из json-тега.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// actor возвращает аутентифицированного субъекта или пишет 401.
func actor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	a := middleware.ActorFromContext(r.Context())
	if !a.IsAuthenticated() {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return a, false
	}
	return a, true
}

// decodeJSON читает JSON-тело в dst и валидирует его тегами validate.
// При ошибке пишет 400 и возвращает false.
func (h *APIHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		msg, fields := validationDetails(err)
		apierrors.ValidationFields(w, msg, fields)
		return false
	}
	return true
}

// validationDetails превращает ошибки validator в общее сообщение
// и причины по полям (ключ — имя поля в JSON).
func validationDetails(err error) (string, map[string]string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error(), nil
	}
	msgs := make([]string, 0, len(verrs))
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		var reason string
		switch fe.Tag() {
		case "required":
			reason = "обязательно"
		case "uuid":
			reason = "должно быть UUID"
		case "max":
			reason = "длиннее " + fe.Param()
		case "min":
			reason = "меньше " + fe.Param()
		case "gte", "lte":
			reason = "вне допустимого диапазона"
		case "oneof":
			reason = "должно быть одним из: " + fe.Param()
		default:
			reason = "не прошло проверку " + fe.Tag()
		}
		fields[fe.Field()] = reason
		msgs = append(msgs, fmt.Sprintf("поле %s %s", fe.Field(), reason))
	}
	return strings.Join(msgs, "; "), fields
}

// pathID извлекает UUID из параметра пути name или пишет 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Параметр %s должен быть UUID", name))
		return "", false
	}
	return id, true
}

// queryUUID возвращает необязательный UUID-параметр запроса.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	if _, err := uuid.Parse(v); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Параметр %s должен быть UUID", name))
		return nil, false
	}
	return &v, true
}

// queryString возвращает необязательный строковый параметр запроса.
func queryString(r *http.Request, name string) *string {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil
	}
	return &v
}

// pagination разбирает limit/offset из query.
// Некорректные значения — 400; отсутствующие — значения по умолчанию.
func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	var lp, op *int
	for _, p := range []struct {
		name string
		dst  **int
	}{{"limit", &lp}, {"offset", &op}} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Параметр %s должен быть целым числом", p.name))
			return 0, 0, false
		}
		*p.dst = &n
	}
	limit, offset = paginationDefaults(lp, op)
	return limit, offset, true
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 50
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 200 {
			l = 200
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// listResponse — страница списка.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// newList строит страницу, преобразуя элементы функцией conv.
func newList[M, T any](items []M, conv func(M) T, total, limit, offset int) listResponse[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return listResponse[T]{Items: out, Total: total, Limit: limit, Offset: offset}
}

// mapSlice преобразует элементы без пагинации.
func mapSlice[M, T any](items []M, conv func(M) T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return out
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются как 500 без подробностей.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}
