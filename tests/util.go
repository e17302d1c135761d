package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	inmemdb "github.com/simonmuehling/educafric-platform-sub005/storage/database/inmem"
)

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:   "Educafric",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "test-secret-key",
	}
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Bulletins.MaxGrade = 20
	conf.Bulletins.TransitionRetries = 3
	conf.Bulletins.NotifyTimeout = 5 * time.Second
	conf.Bulletins.NotifyWorkers = 2
	return conf
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	bulletin.InitValidators(validate, translator, 20)
	return validate, translator
}

// LogEntry is a message recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger that keeps its entries in memory.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// NotifierMock records notifications and optionally fails with Err.
type NotifierMock struct {
	mu            sync.Mutex
	Err           error
	notifications []bulletin.Notification
}

var _ bulletin.Notifier = (*NotifierMock)(nil)

func (n *NotifierMock) Notify(_ context.Context, notif bulletin.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notif)
	return n.Err
}

func (n *NotifierMock) Notifications() []bulletin.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bulletin.Notification(nil), n.notifications...)
}

// Env bundles an in-memory bulletin service with its collaborators.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Repo       bulletin.Repository
	Guardians  bulletin.GuardianRepository
	Notifier   *NotifierMock
	Logger     *Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Svc        *bulletin.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	env := &Env{
		Conf:     NewConfig(),
		DB:       inmemdb.Open(),
		Notifier: new(NotifierMock),
		Logger:   new(Logger),
	}
	env.Repo = inmemdb.NewBulletinRepository(env.DB)
	env.Guardians = inmemdb.NewGuardianRepository(env.DB)
	validate, translator := NewValidator()
	env.Validate = validate
	env.Translator = translator
	env.Svc = bulletin.NewService(env.Conf, env.Repo, env.Notifier, env.Logger, validate, translator)
	return env
}

func GradeInput(subject string, grade, coef float64) bulletin.GradeInput {
	return bulletin.GradeInput{SubjectID: subject, Grade: &grade, Coefficient: coef}
}

// CreateBulletin creates a draft for a student of class 6A, term T1 of 2025-2026.
func CreateBulletin(t *testing.T, svc *bulletin.Service, studentID string, grades ...bulletin.GradeInput) bulletin.Bulletin {
	t.Helper()
	b, err := svc.Create(context.Background(), bulletin.NewBulletin{
		StudentID:      studentID,
		ClassID:        "6A",
		TermID:         "T1",
		AcademicYearID: "2025-2026",
		SchoolID:       "school-1",
		Grades:         grades,
	})
	if err != nil {
		t.Fatalf("CreateBulletin() failed: %v", err)
	}
	return b
}

// MoveTo drives a fresh draft bulletin through the workflow up to status.
func MoveTo(t *testing.T, svc *bulletin.Service, id string, status bulletin.Status) bulletin.Bulletin {
	t.Helper()
	ctx := context.Background()
	steps := map[bulletin.Status][]bulletin.Command{
		bulletin.StatusDraft:    nil,
		bulletin.StatusPending:  {bulletin.Submit("teacher-7", "grades complete")},
		bulletin.StatusRejected: {bulletin.Submit("teacher-7", "grades complete"), bulletin.Reject("director-3", "check math")},
		bulletin.StatusApproved: {bulletin.Submit("teacher-7", "grades complete"), bulletin.Approve("director-3", "")},
		bulletin.StatusSent: {
			bulletin.Submit("teacher-7", "grades complete"),
			bulletin.Approve("director-3", ""),
			bulletin.Send("director-3", ""),
		},
	}
	cmds, ok := steps[status]
	if !ok {
		t.Fatalf("MoveTo(): unknown status %q", status)
	}

	b, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("MoveTo() failed: %v", err)
	}
	for _, cmd := range cmds {
		if b, err = svc.Execute(ctx, id, cmd); err != nil {
			t.Fatalf("MoveTo(%s) failed on %s: %v", status, cmd.Action, err)
		}
	}
	return b
}

func StudentID(i int) string {
	return fmt.Sprintf("student-%02d", i)
}
