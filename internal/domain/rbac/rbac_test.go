package rbac

import (
	"testing"
)

var (
	admin     = NewActor("u-admin", []string{"admin"}, nil)
	moderator = NewActor("u-mod", []string{"moderador"}, nil)
	owner     = NewActor("u-owner", []string{"estudiante"}, nil)
	stranger  = NewActor("u-other", []string{"estudiante"}, nil)
	noRoles   = NewActor("u-ghost", []string{"superuser"}, nil)
	anonymous = Actor{}
)

func TestNewActor(t *testing.T) {
	a := NewActor("u1",
		[]string{"admin", "root", "admin", "estudiante"},
		[]string{"edit_perfiles", "sudo", "edit_perfiles"},
	)

	if len(a.Roles) != 2 || a.Roles[0] != RoleAdmin || a.Roles[1] != RoleStudent {
		t.Errorf("Roles = %v, хотели [admin estudiante]", a.Roles)
	}
	if len(a.Permissions) != 1 || a.Permissions[0] != PermEditProfiles {
		t.Errorf("Permissions = %v, хотели [edit_perfiles]", a.Permissions)
	}
	if !a.IsStaff() {
		t.Error("admin должен быть staff")
	}
	if got := a.RoleStrings(); len(got) != 2 || got[0] != "admin" {
		t.Errorf("RoleStrings() = %v", got)
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{"admin", "moderador", "estudiante"} {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false, хотели true", r)
		}
	}
	for _, r := range []string{"", "readonly", "Admin"} {
		if IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = true, хотели false", r)
		}
	}
}

func TestCanPerform_File(t *testing.T) {
	own := FileResource{OwnerID: owner.UserID}
	orphan := FileResource{}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   bool
	}{
		{"просмотр любым пользователем", stranger, ActionView, own, true},
		{"создание любым пользователем", noRoles, ActionCreate, orphan, true},
		{"просмотр анонимом", anonymous, ActionView, own, false},

		{"обновление владельцем-студентом", owner, ActionUpdate, own, true},
		{"обновление чужим студентом", stranger, ActionUpdate, own, false},
		{"обновление модератором", moderator, ActionUpdate, own, true},
		{"обновление администратором", admin, ActionUpdate, own, true},
		{"обновление без ролей", noRoles, ActionUpdate, FileResource{OwnerID: noRoles.UserID}, false},
		{"обновление архива без владельца", stranger, ActionUpdate, orphan, false},

		{"удаление администратором", admin, ActionDelete, own, true},
		{"удаление администратором без владельца", admin, ActionDelete, orphan, true},
		{"удаление владельцем-студентом", owner, ActionDelete, own, true},
		{"удаление модератором", moderator, ActionDelete, own, false},
		{"удаление чужим студентом", stranger, ActionDelete, own, false},

		{"restore администратором", admin, ActionRestore, own, false},
		{"forceDelete владельцем", owner, ActionForceDelete, own, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPerform(tt.actor, tt.action, tt.res); got != tt.want {
				t.Errorf("CanPerform(%v, %s) = %v, хотели %v", tt.actor.Roles, tt.action, got, tt.want)
			}
		})
	}
}

func TestCanPerform_Profile(t *testing.T) {
	viewer := NewActor("u-viewer", nil, []string{"view_perfiles"})
	editor := NewActor("u-editor", nil, []string{"edit_perfiles"})
	deleter := NewActor("u-deleter", nil, []string{"delete_perfiles"})
	profile := ProfileResource{UserID: owner.UserID}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		want   bool
	}{
		{"просмотр любым", anonymous, ActionView, true},
		{"список без разрешения", admin, ActionViewAny, false},
		{"список с view_perfiles", viewer, ActionViewAny, true},
		{"создание с view_perfiles", viewer, ActionCreate, true},
		{"создание без разрешения", owner, ActionCreate, false},
		{"обновление владельцем", owner, ActionUpdate, true},
		{"обновление модератором", moderator, ActionUpdate, true},
		{"обновление с edit_perfiles", editor, ActionUpdate, true},
		{"обновление чужим", stranger, ActionUpdate, false},
		{"удаление с delete_perfiles", deleter, ActionDelete, true},
		{"удаление администратором без разрешения", admin, ActionDelete, false},
		{"удаление владельцем", owner, ActionDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPerform(tt.actor, tt.action, profile); got != tt.want {
				t.Errorf("CanPerform(%s) = %v, хотели %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestCanPerform_Feedback(t *testing.T) {
	comment := CommentResource{AuthorID: owner.UserID}
	rating := RatingResource{UserID: owner.UserID}
	report := ReportResource{ReporterID: owner.UserID}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   bool
	}{
		{"комментарий: правка автором", owner, ActionUpdate, comment, true},
		{"комментарий: правка чужим", stranger, ActionUpdate, comment, false},
		{"комментарий: удаление модератором", moderator, ActionDelete, comment, true},
		{"комментарий: выделение модератором", moderator, ActionFeature, comment, true},
		{"комментарий: выделение автором", owner, ActionFeature, comment, false},

		{"оценка: правка владельцем", owner, ActionUpdate, rating, true},
		{"оценка: правка администратором", admin, ActionUpdate, rating, false},
		{"оценка: удаление администратором", admin, ActionDelete, rating, true},
		{"оценка: удаление модератором", moderator, ActionDelete, rating, false},

		{"жалоба: создание студентом", stranger, ActionCreate, ReportResource{}, true},
		{"жалоба: просмотр автором", owner, ActionView, report, true},
		{"жалоба: просмотр чужим", stranger, ActionView, report, false},
		{"жалоба: список модератором", moderator, ActionViewAny, ReportResource{}, true},
		{"жалоба: список студентом", owner, ActionViewAny, ReportResource{}, false},
		{"жалоба: смена статуса автором", owner, ActionUpdate, report, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPerform(tt.actor, tt.action, tt.res); got != tt.want {
				t.Errorf("CanPerform(%s) = %v, хотели %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestCanPerform_CatalogNotificationAudit(t *testing.T) {
	note := NotificationResource{RecipientID: owner.UserID}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   bool
	}{
		{"справочник: просмотр анонимом", anonymous, ActionViewAny, CatalogResource{}, true},
		{"справочник: создание администратором", admin, ActionCreate, CatalogResource{}, true},
		{"справочник: создание модератором", moderator, ActionCreate, CatalogResource{}, false},
		{"уведомление: чтение получателем", owner, ActionUpdate, note, true},
		{"уведомление: чтение администратором", admin, ActionView, note, false},
		{"аудит: администратор", admin, ActionViewAny, AuditResource{}, true},
		{"аудит: модератор", moderator, ActionViewAny, AuditResource{}, false},
		{"аудит: удаление", admin, ActionDelete, AuditResource{}, false},
		{"неизвестный ресурс", admin, ActionView, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPerform(tt.actor, tt.action, tt.res); got != tt.want {
				t.Errorf("CanPerform(%s) = %v, хотели %v", tt.action, got, tt.want)
			}
		})
	}
}
