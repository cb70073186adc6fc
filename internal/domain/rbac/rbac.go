// Пакет rbac — предикаты авторизации ExaDocs.
// CanPerform — чистая функция: решение принимается только по ролям,
// разрешениям и владению ресурсом. Неизвестная роль или неизвестный
// ресурс дают отказ.
package rbac

// Role — роль пользователя из токена.
type Role string

// Роли.
const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderador"
	RoleStudent   Role = "estudiante"
)

// Permission — точечное разрешение из токена.
type Permission string

// Разрешения на профили.
const (
	PermViewProfiles   Permission = "view_perfiles"
	PermEditProfiles   Permission = "edit_perfiles"
	PermDeleteProfiles Permission = "delete_perfiles"
)

// Action — действие над ресурсом.
type Action string

// Действия.
const (
	ActionView        Action = "view"
	ActionViewAny     Action = "viewAny"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionRestore     Action = "restore"
	ActionForceDelete Action = "forceDelete"
	// ActionFeature — выделение комментария
	ActionFeature Action = "feature"
)

var knownRoles = map[Role]bool{
	RoleAdmin:     true,
	RoleModerator: true,
	RoleStudent:   true,
}

var knownPermissions = map[Permission]bool{
	PermViewProfiles:   true,
	PermEditProfiles:   true,
	PermDeleteProfiles: true,
}

// Actor — субъект, выполняющий действие.
type Actor struct {
	// UserID — sub из токена (пустой — анонимный)
	UserID      string
	Roles       []Role
	Permissions []Permission
}

// NewActor строит Actor из строк токена. Неизвестные роли и
// разрешения отбрасываются, дубликаты схлопываются.
func NewActor(userID string, roles, permissions []string) Actor {
	a := Actor{UserID: userID}
	seenRoles := make(map[Role]bool, len(roles))
	for _, r := range roles {
		role := Role(r)
		if knownRoles[role] && !seenRoles[role] {
			seenRoles[role] = true
			a.Roles = append(a.Roles, role)
		}
	}
	seenPerms := make(map[Permission]bool, len(permissions))
	for _, p := range permissions {
		perm := Permission(p)
		if knownPermissions[perm] && !seenPerms[perm] {
			seenPerms[perm] = true
			a.Permissions = append(a.Permissions, perm)
		}
	}
	return a
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	return knownRoles[Role(role)]
}

// HasRole проверяет наличие роли.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission проверяет наличие разрешения.
func (a Actor) HasPermission(perm Permission) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsAuthenticated — актор идентифицирован токеном.
func (a Actor) IsAuthenticated() bool {
	return a.UserID != ""
}

// IsStaff — администратор или модератор.
func (a Actor) IsStaff() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleModerator)
}

// RoleStrings возвращает роли в виде строк (для сохранения пользователя).
func (a Actor) RoleStrings() []string {
	out := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		out[i] = string(r)
	}
	return out
}

// owns — актор является указанным пользователем.
func (a Actor) owns(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}

// Resource — ресурс, к которому применяется действие.
// Набор вариантов закрыт: реализации только в этом пакете.
type Resource interface {
	resource()
}

// FileResource — архив. OwnerID пустой для viewAny/create.
type FileResource struct{ OwnerID string }

// ProfileResource — профиль пользователя.
type ProfileResource struct{ UserID string }

// CommentResource — комментарий.
type CommentResource struct{ AuthorID string }

// RatingResource — оценка.
type RatingResource struct{ UserID string }

// ReportResource — жалоба.
type ReportResource struct{ ReporterID string }

// CatalogResource — справочники: карьеры, материи, планы, типы, состояния.
type CatalogResource struct{}

// NotificationResource — уведомление.
type NotificationResource struct{ RecipientID string }

// AuditResource — журнал аудита.
type AuditResource struct{}

func (FileResource) resource()         {}
func (ProfileResource) resource()      {}
func (CommentResource) resource()      {}
func (RatingResource) resource()       {}
func (ReportResource) resource()       {}
func (CatalogResource) resource()      {}
func (NotificationResource) resource() {}
func (AuditResource) resource()        {}

// CanPerform решает, может ли actor выполнить action над resource.
func CanPerform(actor Actor, action Action, resource Resource) bool {
	switch r := resource.(type) {
	case FileResource:
		return canFile(actor, action, r)
	case ProfileResource:
		return canProfile(actor, action, r)
	case CommentResource:
		return canComment(actor, action, r)
	case RatingResource:
		return canRating(actor, action, r)
	case ReportResource:
		return canReport(actor, action, r)
	case CatalogResource:
		return canCatalog(actor, action)
	case NotificationResource:
		return canNotification(actor, action, r)
	case AuditResource:
		return action == ActionViewAny && actor.HasRole(RoleAdmin)
	default:
		return false
	}
}

func canFile(a Actor, action Action, f FileResource) bool {
	switch action {
	case ActionView, ActionViewAny, ActionCreate:
		return a.IsAuthenticated()
	case ActionUpdate:
		return a.IsStaff() || (a.HasRole(RoleStudent) && a.owns(f.OwnerID))
	case ActionDelete:
		return a.HasRole(RoleAdmin) || (a.HasRole(RoleStudent) && a.owns(f.OwnerID))
	default:
		// restore и forceDelete не разрешены никому
		return false
	}
}

func canProfile(a Actor, action Action, p ProfileResource) bool {
	switch action {
	case ActionView:
		return true
	case ActionViewAny, ActionCreate:
		return a.HasPermission(PermViewProfiles)
	case ActionUpdate:
		return a.IsStaff() || a.owns(p.UserID) || a.HasPermission(PermEditProfiles)
	case ActionDelete:
		return a.HasPermission(PermDeleteProfiles)
	default:
		return false
	}
}

func canComment(a Actor, action Action, c CommentResource) bool {
	switch action {
	case ActionView, ActionViewAny, ActionCreate:
		return a.IsAuthenticated()
	case ActionUpdate, ActionDelete:
		return a.IsStaff() || a.owns(c.AuthorID)
	case ActionFeature:
		return a.IsStaff()
	default:
		return false
	}
}

func canRating(a Actor, action Action, r RatingResource) bool {
	switch action {
	case ActionView, ActionViewAny, ActionCreate:
		return a.IsAuthenticated()
	case ActionUpdate:
		return a.owns(r.UserID)
	case ActionDelete:
		return a.owns(r.UserID) || a.HasRole(RoleAdmin)
	default:
		return false
	}
}

func canReport(a Actor, action Action, r ReportResource) bool {
	switch action {
	case ActionCreate:
		return a.IsAuthenticated()
	case ActionView:
		return a.IsStaff() || a.owns(r.ReporterID)
	case ActionViewAny, ActionUpdate:
		return a.IsStaff()
	default:
		return false
	}
}

func canCatalog(a Actor, action Action) bool {
	switch action {
	case ActionView, ActionViewAny:
		return true
	case ActionCreate, ActionUpdate, ActionDelete:
		return a.HasRole(RoleAdmin)
	default:
		return false
	}
}

func canNotification(a Actor, action Action, n NotificationResource) bool {
	switch action {
	case ActionView, ActionUpdate:
		return a.owns(n.RecipientID)
	default:
		return false
	}
}
