package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jorcase/exadocs/internal/domain/model"
	"github.com/jorcase/exadocs/internal/domain/rbac"
	"github.com/jorcase/exadocs/internal/mail"
	"github.com/jorcase/exadocs/internal/repository"
)

// Заготовки в памяти для тестов сервисного слоя. Встроенный интерфейс
// закрывает методы, которые тестам не нужны (вызов — panic).

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

var (
	admin     = rbac.NewActor("admin-1", []string{"admin"}, nil)
	moderator = rbac.NewActor("mod-1", []string{"moderador"}, nil)
	owner     = rbac.NewActor("student-owner", []string{"estudiante"}, nil)
	stranger  = rbac.NewActor("student-other", []string{"estudiante"}, nil)
)

// --- Архивы ---

type fakeFiles struct {
	repository.FileRepository
	mu    sync.Mutex
	files map[string]*model.File
	saves map[string]bool
	rows  []*model.ExportRow
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[string]*model.File{}, saves: map[string]bool{}}
}

func (r *fakeFiles) put(f *model.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.files[f.ID] = &cp
}

func (r *fakeFiles) get(id string) *model.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

func (r *fakeFiles) Create(_ context.Context, f *model.File) error {
	f.Version = 1
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt
	r.put(f)
	return nil
}

func (r *fakeFiles) GetByID(_ context.Context, id string) (*model.File, error) {
	f := r.get(id)
	if f == nil || f.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return f, nil
}

func (r *fakeFiles) GetForUpdate(ctx context.Context, id string) (*model.File, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeFiles) Update(_ context.Context, f *model.File) error {
	if r.get(f.ID) == nil {
		return repository.ErrNotFound
	}
	f.UpdatedAt = time.Now().UTC()
	r.put(f)
	return nil
}

func (r *fakeFiles) UpdateState(_ context.Context, f *model.File, stateID string, publish bool) error {
	cur := r.get(f.ID)
	if cur == nil || cur.DeletedAt != nil {
		return repository.ErrNotFound
	}
	cur.StateID = stateID
	cur.Version++
	if publish && cur.PublishedAt == nil {
		now := time.Now().UTC()
		cur.PublishedAt = &now
	}
	r.put(cur)
	*f = *cur
	return nil
}

func (r *fakeFiles) IncrementVisits(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	f.VisitCount++
	return f.VisitCount, nil
}

func (r *fakeFiles) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok || f.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	f.DeletedAt = &now
	return nil
}

func (r *fakeFiles) Save(_ context.Context, fileID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[fileID+"/"+userID] = true
	return nil
}

func (r *fakeFiles) Unsave(_ context.Context, fileID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saves[fileID+"/"+userID] {
		return repository.ErrNotFound
	}
	delete(r.saves, fileID+"/"+userID)
	return nil
}

func (r *fakeFiles) ExportRows(_ context.Context) ([]*model.ExportRow, error) {
	return r.rows, nil
}

// snapshot и restore имитируют откат транзакции.
func (r *fakeFiles) snapshot() map[string]model.File {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.File, len(r.files))
	for k, v := range r.files {
		out[k] = *v
	}
	return out
}

func (r *fakeFiles) restore(s map[string]model.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = make(map[string]*model.File, len(s))
	for k, v := range s {
		cp := v
		r.files[k] = &cp
	}
}

// --- Состояния ---

type fakeStates struct {
	repository.FileStateRepository
	mu     sync.Mutex
	states map[string]*model.FileState
	calls  int
}

func newFakeStates(states ...*model.FileState) *fakeStates {
	r := &fakeStates{states: map[string]*model.FileState{}}
	for _, s := range states {
		r.states[s.ID] = s
	}
	return r
}

func (r *fakeStates) GetByID(_ context.Context, id string) (*model.FileState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	s, ok := r.states[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (r *fakeStates) GetDefault(_ context.Context) (*model.FileState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, s := range r.states {
		if s.IsDefault {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeStates) Update(_ context.Context, s *model.FileState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[s.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *s
	r.states[s.ID] = &cp
	return nil
}

func (r *fakeStates) Create(_ context.Context, s *model.FileState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.states {
		if cur.Name == s.Name || (s.IsDefault && cur.IsDefault) {
			return repository.ErrConflict
		}
	}
	cp := *s
	r.states[s.ID] = &cp
	return nil
}

func (r *fakeStates) ClearDefault(_ context.Context, exceptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.states {
		if cur.IsDefault && id != exceptID {
			cp := *cur
			cp.IsDefault = false
			r.states[id] = &cp
		}
	}
	return nil
}

// snapshot/restore — для отката в fakeStateTx.
func (r *fakeStates) snapshot() map[string]*model.FileState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.FileState, len(r.states))
	for id, s := range r.states {
		out[id] = s
	}
	return out
}

func (r *fakeStates) restore(states map[string]*model.FileState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = states
}

// fakeStateTx — транзакция над состояниями; при ошибке откатывает их.
type fakeStateTx struct {
	states *fakeStates
	calls  int
}

func (t *fakeStateTx) InTx(_ context.Context, fn func(TxRepos) error) error {
	t.calls++
	saved := t.states.snapshot()
	err := fn(TxRepos{States: t.states})
	if err != nil {
		t.states.restore(saved)
	}
	return err
}

var (
	stateDraft    = &model.FileState{ID: "st-draft", Name: "Borrador"}
	statePending  = &model.FileState{ID: "st-pending", Name: "Pendiente", IsDefault: true}
	stateApproved = &model.FileState{ID: "st-approved", Name: "Aprobado", IsFinal: true, Publishes: true}
	stateRejected = &model.FileState{ID: "st-rejected", Name: "Rechazado", IsFinal: true}
)

func seededStates() *fakeStates {
	return newFakeStates(
		&model.FileState{ID: stateDraft.ID, Name: stateDraft.Name},
		&model.FileState{ID: statePending.ID, Name: statePending.Name, IsDefault: true},
		&model.FileState{ID: stateApproved.ID, Name: stateApproved.Name, IsFinal: true, Publishes: true},
		&model.FileState{ID: stateRejected.ID, Name: stateRejected.Name, IsFinal: true},
	)
}

// --- История и аудит ---

type fakeHistory struct {
	repository.ReviewHistoryRepository
	mu      sync.Mutex
	entries []*model.ReviewHistoryEntry
}

func (r *fakeHistory) Append(_ context.Context, e *model.ReviewHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeHistory) ListByFile(_ context.Context, fileID string) ([]*model.ReviewHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ReviewHistoryEntry
	for _, e := range r.entries {
		if e.FileID == fileID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAudit struct {
	repository.AuditRepository
	mu      sync.Mutex
	entries []*model.AuditEntry
	err     error
}

func (r *fakeAudit) Append(_ context.Context, e *model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeTransactor выполняет fn над теми же заготовками и откатывает
// архивы, историю и аудит при ошибке.
type fakeTransactor struct {
	files   *fakeFiles
	history *fakeHistory
	audit   *fakeAudit
}

func (t *fakeTransactor) InTx(_ context.Context, fn func(TxRepos) error) error {
	files := t.files.snapshot()
	t.history.mu.Lock()
	historyLen := len(t.history.entries)
	t.history.mu.Unlock()
	t.audit.mu.Lock()
	auditLen := len(t.audit.entries)
	t.audit.mu.Unlock()

	err := fn(TxRepos{Files: t.files, History: t.history, Audit: t.audit})
	if err != nil {
		t.files.restore(files)
		t.history.mu.Lock()
		t.history.entries = t.history.entries[:historyLen]
		t.history.mu.Unlock()
		t.audit.mu.Lock()
		t.audit.entries = t.audit.entries[:auditLen]
		t.audit.mu.Unlock()
	}
	return err
}

// --- Уведомления и письма ---

type notifyCall struct {
	RecipientID string
	Type        string
	Title       string
	Data        map[string]any
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, in NotifyInput) (*model.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	n.calls = append(n.calls, notifyCall{RecipientID: in.RecipientID, Type: in.Type, Title: in.Title, Data: in.Data})
	return &model.Notification{RecipientID: in.RecipientID, Type: in.Type, Title: in.Title}, nil
}

func (n *fakeNotifier) NotifyOwnerOf(ctx context.Context, file *model.File, actorID *string, typ, title string, data map[string]any) (*model.Notification, error) {
	if file.OwnerID == nil {
		return nil, nil
	}
	return n.Notify(ctx, NotifyInput{RecipientID: *file.OwnerID, ActorID: actorID, FileID: &file.ID, Type: typ, Title: title, Data: data})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *fakeMailer) Enqueue(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

type fakeUsers struct {
	repository.UserRepository
	users   map[string]*model.User
	upserts int
}

func (r *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUsers) Upsert(_ context.Context, u *model.User) error {
	r.upserts++
	if r.users == nil {
		r.users = map[string]*model.User{}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func defaultUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*model.User{
		owner.UserID:    {ID: owner.UserID, Name: "Ana Owner", Email: "ana@unsl.edu.ar"},
		stranger.UserID: {ID: stranger.UserID, Name: "Otro", Email: "otro@unsl.edu.ar"},
	}}
}

// --- Справочники ---

type fakeCatalog struct {
	repository.CatalogRepository
	subjects    map[string]bool
	fileTypes   map[string]bool
	curricula   map[string][]string
	failSubject error

	curriculumLookups int
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{
		subjects:  map[string]bool{"sub-alg": true, "sub-fis": true},
		fileTypes: map[string]bool{"ft-exam": true},
		curricula: map[string][]string{"cur-2011": {"sub-alg"}},
	}
}

func (r *fakeCatalog) GetSubject(_ context.Context, id string) (*model.Subject, error) {
	if r.failSubject != nil {
		return nil, r.failSubject
	}
	if !r.subjects[id] {
		return nil, repository.ErrNotFound
	}
	return &model.Subject{ID: id}, nil
}

func (r *fakeCatalog) GetFileType(_ context.Context, id string) (*model.FileType, error) {
	if !r.fileTypes[id] {
		return nil, repository.ErrNotFound
	}
	return &model.FileType{ID: id}, nil
}

func (r *fakeCatalog) GetCurriculum(_ context.Context, id string) (*model.Curriculum, error) {
	r.curriculumLookups++
	if id == "" {
		// Как PostgreSQL: пустая строка не приводится к uuid
		return nil, errors.New(`ERROR: invalid input syntax for type uuid: "" (SQLSTATE 22P02)`)
	}
	if _, ok := r.curricula[id]; !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Curriculum{ID: id}, nil
}

func (r *fakeCatalog) CurriculumHasSubject(_ context.Context, curriculumID, subjectID string) (bool, error) {
	for _, s := range r.curricula[curriculumID] {
		if s == subjectID {
			return true, nil
		}
	}
	return false, nil
}

// --- Стенд ---

// env — набор сервисов поверх заготовок.
type env struct {
	files      *fakeFiles
	states     *fakeStates
	history    *fakeHistory
	audit      *fakeAudit
	notifier   *fakeNotifier
	mailer     *fakeMailer
	users      *fakeUsers
	catalog    *fakeCatalog
	cache      *StateCache
	dispatcher *Dispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		files:    newFakeFiles(),
		states:   seededStates(),
		history:  &fakeHistory{},
		audit:    &fakeAudit{},
		notifier: &fakeNotifier{},
		mailer:   &fakeMailer{},
		users:    defaultUsers(),
		catalog:  defaultCatalog(),
	}
	e.cache = NewStateCache(e.states, 16, time.Minute)
	e.dispatcher = NewDispatcher(e.notifier, e.mailer, e.users, "https://exadocs.test", testLogger())
	return e
}

func (e *env) reviewService(transitions map[string][]string) *ReviewService {
	return NewReviewService(&fakeTransactor{files: e.files, history: e.history, audit: e.audit},
		e.files, e.cache, e.dispatcher, transitions, testLogger())
}

func (e *env) fileService() *FileService {
	return NewFileService(e.files, e.catalog, e.history, e.cache,
		NewAuditService(e.audit, testLogger()), e.dispatcher, testLogger())
}

// addFile кладёт архив владельца owner в состоянии stateID.
func (e *env) addFile(id, stateID string) *model.File {
	f := &model.File{
		ID:          id,
		OwnerID:     strPtr(owner.UserID),
		SubjectID:   "sub-alg",
		FileTypeID:  "ft-exam",
		StateID:     stateID,
		Title:       "Parcial 1 Álgebra",
		StoragePath: "archivos/" + id + ".pdf",
		SizeBytes:   2048,
		Version:     1,
	}
	e.files.put(f)
	return f
}

var errBoom = errors.New("boom")

// actorCase — именованный актор для табличных тестов.
type actorCase string

const (
	actorAdmin     actorCase = "admin"
	actorModerator actorCase = "moderator"
	actorOwner     actorCase = "owner"
	actorStranger  actorCase = "stranger"
)

func (c actorCase) actor() rbac.Actor {
	switch c {
	case actorAdmin:
		return admin
	case actorModerator:
		return moderator
	case actorOwner:
		return owner
	default:
		return stranger
	}
}

func anonymous() rbac.Actor {
	return rbac.NewActor("", nil, nil)
}
