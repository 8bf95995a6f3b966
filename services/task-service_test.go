package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"telecom-project/tasks-service/models"
	"telecom-project/tasks-service/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeUserResolver struct {
	users map[string]*models.User
}

func (f *fakeUserResolver) GetByProviderID(ctx context.Context, providerUserID string) (*models.User, error) {
	if user, ok := f.users[providerUserID]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func testResolver() *fakeUserResolver {
	return &fakeUserResolver{users: map[string]*models.User{
		"exec-1": {ProviderUserID: "exec-1", Name: "Erik Voss", Email: "erik@example.com", Role: models.RoleExecutor},
		"init-1": {ProviderUserID: "init-1", Name: "Ivana Reyes", Email: "ivana@example.com", Role: models.RoleInitiator},
	}}
}

func testActor(role string) *utils.Claims {
	return &utils.Claims{UserID: "actor-1", Name: "Ada Brandt", Email: "ada@example.com", Role: role}
}

func baseTask() *models.Task {
	return &models.Task{
		TaskID:   "MS1-001",
		TaskName: "Feeder swap",
		BsNumber: "MS1",
		Status:   models.StatusToDo,
		Events:   []models.TaskEvent{},
		Version:  1,
	}
}

func TestApplyTaskUpdateStatusChangeAppendsOneEvent(t *testing.T) {
	task := baseTask()
	upd := &TaskUpdate{Status: string(models.StatusAssigned), Comment: "crew booked"}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, models.StatusAssigned, task.Status)
	require.Len(t, changes, 1)
	assert.Equal(t, models.StatusToDo, changes[0].Old)
	assert.Equal(t, models.StatusAssigned, changes[0].New)
	require.Len(t, task.Events, 1)
	assert.Equal(t, "crew booked", task.Events[0].Details.Comment)
}

func TestApplyTaskUpdateIdenticalStatusIsNoOp(t *testing.T) {
	task := baseTask()
	upd := &TaskUpdate{Status: string(models.StatusToDo)}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, changes)
	assert.Empty(t, task.Events)
}

func TestApplyTaskUpdateRejectsSkippedTransition(t *testing.T) {
	task := baseTask()
	upd := &TaskUpdate{Status: string(models.StatusDone)}

	_, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())

	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, models.StatusToDo, task.Status)
}

func TestApplyTaskUpdateAdminOverridesTable(t *testing.T) {
	task := baseTask()
	upd := &TaskUpdate{Status: string(models.StatusAgreed)}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("admin"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, models.StatusAgreed, task.Status)
	assert.Len(t, changes, 1)
}

func TestApplyTaskUpdateUnknownStatus(t *testing.T) {
	task := baseTask()
	upd := &TaskUpdate{Status: "Closed"}

	_, err := applyTaskUpdate(context.Background(), task, upd, testActor("admin"), testResolver(), time.Now())
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApplyTaskUpdateAssignExecutorDerivesStatus(t *testing.T) {
	task := baseTask()
	executorID := "exec-1"
	upd := &TaskUpdate{ExecutorID: &executorID}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "exec-1", task.ExecutorID)
	assert.Equal(t, "Erik Voss", task.ExecutorName)
	assert.Equal(t, "erik@example.com", task.ExecutorEmail)
	assert.Equal(t, models.StatusAssigned, task.Status)
	require.Len(t, changes, 1)
	require.Len(t, task.Events, 1)
	assert.Equal(t, models.StatusAssigned, task.Events[0].Details.NewStatus)
}

func TestApplyTaskUpdateClearExecutorReturnsToBacklog(t *testing.T) {
	task := baseTask()
	task.Status = models.StatusAssigned
	task.ExecutorID = "exec-1"
	task.ExecutorName = "Erik Voss"
	task.ExecutorEmail = "erik@example.com"

	cleared := ""
	upd := &TaskUpdate{ExecutorID: &cleared}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, task.ExecutorID)
	assert.Empty(t, task.ExecutorName)
	assert.Empty(t, task.ExecutorEmail)
	assert.Equal(t, models.StatusToDo, task.Status)
	assert.Len(t, changes, 1)
}

func TestApplyTaskUpdateSameExecutorNoEvent(t *testing.T) {
	task := baseTask()
	task.Status = models.StatusAssigned
	task.ExecutorID = "exec-1"
	task.ExecutorName = "Erik Voss"

	executorID := "exec-1"
	upd := &TaskUpdate{ExecutorID: &executorID}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, changes)
	assert.Empty(t, task.Events)
	assert.Equal(t, "Erik Voss", task.ExecutorName)
}

func TestApplyTaskUpdateUnresolvableExecutorClearsSnapshot(t *testing.T) {
	task := baseTask()
	executorID := "ghost-7"
	upd := &TaskUpdate{ExecutorID: &executorID}

	_, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "ghost-7", task.ExecutorID)
	assert.Empty(t, task.ExecutorName)
	assert.Empty(t, task.ExecutorEmail)
	assert.Equal(t, models.StatusAssigned, task.Status)
}

func TestApplyTaskUpdateDualPathAppendsTwoEvents(t *testing.T) {
	// An explicit status move and an executor clear in the same request each
	// record their own transition.
	task := baseTask()
	task.Status = models.StatusAssigned
	task.ExecutorID = "exec-1"

	cleared := ""
	upd := &TaskUpdate{Status: string(models.StatusAtWork), ExecutorID: &cleared}

	changes, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, models.StatusAtWork, changes[0].New)
	assert.Equal(t, models.StatusToDo, changes[1].New)
	assert.Len(t, task.Events, 2)
	assert.Equal(t, models.StatusToDo, task.Status)
}

func TestApplyTaskUpdateInitiatorSilentOnMiss(t *testing.T) {
	task := baseTask()
	task.InitiatorName = "Old Name"
	task.InitiatorEmail = "old@example.com"

	upd := &TaskUpdate{InitiatorID: "nobody"}
	_, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "nobody", task.InitiatorID)
	assert.Equal(t, "Old Name", task.InitiatorName)
	assert.Equal(t, "old@example.com", task.InitiatorEmail)
}

func TestApplyTaskUpdateScalarFields(t *testing.T) {
	task := baseTask()
	upd := &TaskUpdate{
		TaskName:        "Mast inspection",
		BsNumber:        "MS9",
		TaskDescription: "check guy wires",
		DueDate:         "2026-09-30",
		Priority:        string(models.PriorityUrgent),
	}

	_, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Mast inspection", task.TaskName)
	assert.Equal(t, "MS9", task.BsNumber)
	assert.Equal(t, "check guy wires", task.TaskDescription)
	assert.Equal(t, models.PriorityUrgent, task.Priority)
	assert.Equal(t, time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC), task.DueDate)
}

func TestApplyTaskUpdateIgnoresBadDueDateAndPriority(t *testing.T) {
	task := baseTask()
	task.Priority = models.PriorityLow
	original := task.DueDate

	upd := &TaskUpdate{DueDate: "next tuesday", Priority: "asap"}
	_, err := applyTaskUpdate(context.Background(), task, upd, testActor("author"), testResolver(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, original, task.DueDate)
	assert.Equal(t, models.PriorityLow, task.Priority)
}

func TestApplyAttachmentChangesRetainsAndAppends(t *testing.T) {
	dir := t.TempDir()
	s := &TaskService{files: NewFileService(dir)}

	// File B exists on disk and is dropped from the record only.
	require.NoError(t, os.MkdirAll(dir, 0755))
	bPath := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(bPath, []byte("b"), 0644))

	task := baseTask()
	task.Attachments = []string{"/uploads/a.pdf", "/uploads/b.pdf"}

	upd := &TaskUpdate{
		Multipart:           true,
		ExistingAttachments: []string{"/uploads/a.pdf"},
		NewAttachments:      []UploadedFile{{Name: "photo.jpg", Reader: strings.NewReader("jpeg-bytes")}},
	}

	require.NoError(t, s.applyAttachmentChanges(task, upd))

	require.Len(t, task.Attachments, 2)
	assert.Equal(t, "/uploads/a.pdf", task.Attachments[0])
	assert.True(t, strings.HasPrefix(task.Attachments[1], "/uploads/"))
	assert.True(t, strings.HasSuffix(task.Attachments[1], "-photo.jpg"))

	// The dropped file is still on disk.
	_, err := os.Stat(bPath)
	assert.NoError(t, err)

	// The new upload landed under the uploads directory.
	saved := filepath.Join(dir, strings.TrimPrefix(task.Attachments[1], "/uploads/"))
	content, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(content))
}

// fakeTaskCollection satisfies TaskCollection in memory. FindOne replays a
// canned result; Find and ReplaceOne record the filters they were given.
type fakeTaskCollection struct {
	findOneResult *mongo.SingleResult
	findFilter    interface{}
	insertErr     error
	inserted      []interface{}
	replaceFilter interface{}
	replaced      interface{}
	matchedCount  int64
}

func (f *fakeTaskCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	return f.findOneResult
}

func (f *fakeTaskCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.findFilter = filter
	return mongo.NewCursorFromDocuments([]interface{}{}, nil, nil)
}

func (f *fakeTaskCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, document)
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeTaskCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	f.replaceFilter = filter
	f.replaced = replacement
	return &mongo.UpdateResult{MatchedCount: f.matchedCount}, nil
}

func storedTaskResult(t *testing.T, task *models.Task) *mongo.SingleResult {
	t.Helper()
	return mongo.NewSingleResultFromDocument(task, nil, nil)
}

func TestUpdateTaskStaleVersionConflicts(t *testing.T) {
	tasks := &fakeTaskCollection{
		findOneResult: storedTaskResult(t, baseTask()),
		matchedCount:  0,
	}
	s := &TaskService{tasksCollection: tasks, users: testResolver()}

	_, err := s.UpdateTask(context.Background(), "ms1-001", TaskUpdate{TaskName: "Mast inspection"}, testActor("author"))
	assert.ErrorIs(t, err, ErrVersionConflict)

	// The save matched on the version the document was loaded with.
	filter, ok := tasks.replaceFilter.(bson.M)
	require.True(t, ok)
	assert.Equal(t, int64(1), filter["version"])
}

func TestUpdateTaskMatchingVersionIncrements(t *testing.T) {
	tasks := &fakeTaskCollection{
		findOneResult: storedTaskResult(t, baseTask()),
		matchedCount:  1,
	}
	s := &TaskService{tasksCollection: tasks, users: testResolver()}

	updated, err := s.UpdateTask(context.Background(), "ms1-001", TaskUpdate{TaskName: "Mast inspection"}, testActor("author"))
	require.NoError(t, err)

	assert.Equal(t, "Mast inspection", updated.TaskName)
	assert.Equal(t, int64(2), updated.Version)
}

func TestCreateTaskMapsDuplicateKeyToConflict(t *testing.T) {
	// Two concurrent creates can both pass the pre-insert lookup; the unique
	// index rejects the second insert and the error maps to the same
	// conflict as a found duplicate.
	objects := &fakeTaskCollection{
		findOneResult: mongo.NewSingleResultFromDocument(models.SiteObject{Name: "MS1"}, nil, nil),
	}
	tasks := &fakeTaskCollection{
		findOneResult: mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil),
		insertErr:     mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}},
	}
	s := &TaskService{
		tasksCollection:   tasks,
		objectsCollection: objects,
		users:             testResolver(),
		files:             NewFileService(t.TempDir()),
	}

	input := CreateTaskInput{
		TaskID:    "ms1-001",
		TaskName:  "Feeder swap",
		BsNumber:  "ms001",
		Priority:  models.PriorityMedium,
		OrderFile: UploadedFile{Name: "order.xlsx", Reader: strings.NewReader("cells")},
	}

	_, err := s.CreateTask(context.Background(), input)
	assert.ErrorIs(t, err, ErrDuplicateTask)
}

func TestListTasksUsesStoredRoleOverClaims(t *testing.T) {
	tasks := &fakeTaskCollection{}
	resolver := &fakeUserResolver{users: map[string]*models.User{
		"actor-1": {ProviderUserID: "actor-1", Role: models.RoleExecutor},
	}}
	s := &TaskService{tasksCollection: tasks, users: resolver}

	// The token was issued before the promotion to executor.
	_, err := s.ListTasks(context.Background(), testActor("author"), TaskListFilter{})
	require.NoError(t, err)

	filter, ok := tasks.findFilter.(bson.M)
	require.True(t, ok)
	assert.Equal(t, "actor-1", filter["executorId"])
}

func TestListTasksFallsBackToClaimsRole(t *testing.T) {
	tasks := &fakeTaskCollection{}
	s := &TaskService{tasksCollection: tasks, users: testResolver()}

	// actor-1 has no stored user document yet, so the token role scopes.
	_, err := s.ListTasks(context.Background(), testActor("initiator"), TaskListFilter{})
	require.NoError(t, err)

	filter, ok := tasks.findFilter.(bson.M)
	require.True(t, ok)
	assert.Equal(t, "actor-1", filter["initiatorId"])
}

func TestParseDueDate(t *testing.T) {
	parsed, ok := parseDueDate("2026-01-15")
	assert.True(t, ok)
	assert.Equal(t, 2026, parsed.Year())

	parsed, ok = parseDueDate("2026-01-15T10:30:00Z")
	assert.True(t, ok)
	assert.Equal(t, 10, parsed.Hour())

	_, ok = parseDueDate("soon")
	assert.False(t, ok)
}
