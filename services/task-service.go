package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/models"
	"telecom-project/tasks-service/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateTaskInput carries the parsed creation form. Participant snapshots
// come from the form as the UI already resolved them.
type CreateTaskInput struct {
	TaskID          string
	TaskName        string
	BsNumber        string
	BsAddress       string
	TotalCost       float64
	Priority        models.PriorityLevel
	DueDate         time.Time
	TaskDescription string

	AuthorID    string
	AuthorName  string
	AuthorEmail string

	InitiatorID    string
	InitiatorName  string
	InitiatorEmail string

	ExecutorID    string
	ExecutorName  string
	ExecutorEmail string

	WorkItems   []models.WorkItem
	OrderFile   UploadedFile
	Attachments []UploadedFile
}

// TaskUpdate carries the parsed update payload. Empty strings mean "not
// provided"; ExecutorID alone tracks presence explicitly because an empty
// value there means "clear the executor".
type TaskUpdate struct {
	Status          string
	Comment         string
	TaskName        string
	BsNumber        string
	TaskDescription string
	InitiatorID     string
	ExecutorID      *string
	DueDate         string
	Priority        string

	Multipart           bool
	ExistingAttachments []string
	NewAttachments      []UploadedFile
}

// TaskListFilter narrows the task list at the query layer.
type TaskListFilter struct {
	Status   string
	Priority string
	Search   string
}

// TaskCollection is the slice of *mongo.Collection behavior the task service
// depends on. Tests substitute an in-memory implementation so create and
// update flows run without a database.
type TaskCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

type TaskService struct {
	tasksCollection   TaskCollection
	objectsCollection TaskCollection
	reportsCollection TaskCollection
	users             UserResolver
	files             *FileService
	notifications     *NotificationService
}

func NewTaskService(
	tasksCollection TaskCollection,
	objectsCollection TaskCollection,
	reportsCollection TaskCollection,
	users UserResolver,
	files *FileService,
	notifications *NotificationService,
) *TaskService {
	return &TaskService{
		tasksCollection:   tasksCollection,
		objectsCollection: objectsCollection,
		reportsCollection: reportsCollection,
		users:             users,
		files:             files,
		notifications:     notifications,
	}
}

// CreateTask validates the input, resolves every base-station site against
// the objects registry, persists the uploaded files and inserts the task
// document. Files written before a later step fails stay on disk; the
// orphaned directory is logged for cleanup.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	bsNumber := utils.NormalizeBsNumber(input.BsNumber)

	var bsLocation []models.BsLocation
	for _, name := range utils.SplitSiteNames(bsNumber) {
		var object models.SiteObject
		err := s.objectsCollection.FindOne(ctx, bson.M{"name": name}).Decode(&object)
		if err == mongo.ErrNoDocuments {
			return nil, &SiteNotFoundError{Name: name}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up site %s: %v", name, err)
		}
		bsLocation = append(bsLocation, models.BsLocation{Name: name, Coordinates: object.Coordinates})
	}

	// The unique index on taskId is the real duplicate guard; this lookup
	// only short-circuits before any files are written.
	taskID := strings.ToUpper(input.TaskID)
	err := s.tasksCollection.FindOne(ctx, bson.M{"taskId": taskID}).Err()
	if err == nil {
		return nil, ErrDuplicateTask
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to check task id %s: %v", taskID, err)
	}

	workItems := make([]models.WorkItem, len(input.WorkItems))
	copy(workItems, input.WorkItems)
	for i := range workItems {
		if workItems[i].ID == "" {
			workItems[i].ID = uuid.New().String()
		}
	}

	folder := utils.TaskFolderName(input.TaskName, bsNumber)

	orderURL, err := s.files.SaveOrderFile(folder, input.OrderFile)
	if err != nil {
		return nil, err
	}

	attachmentURLs, err := s.files.SaveTaskAttachments(folder, input.Attachments)
	if err != nil {
		logging.Logger.Errorf("Event ID: TASK_CREATE_FILES_ORPHANED, Description: Attachment write failed for task %s, files remain under %s: %v", taskID, folder, err)
		return nil, err
	}

	task := &models.Task{
		TaskID:          taskID,
		TaskName:        input.TaskName,
		BsNumber:        bsNumber,
		BsLocation:      bsLocation,
		BsAddress:       input.BsAddress,
		TotalCost:       input.TotalCost,
		Priority:        input.Priority,
		DueDate:         input.DueDate,
		TaskDescription: input.TaskDescription,
		AuthorID:        input.AuthorID,
		AuthorName:      input.AuthorName,
		AuthorEmail:     input.AuthorEmail,
		InitiatorID:     input.InitiatorID,
		InitiatorName:   input.InitiatorName,
		InitiatorEmail:  input.InitiatorEmail,
		ExecutorID:      input.ExecutorID,
		ExecutorName:    input.ExecutorName,
		ExecutorEmail:   input.ExecutorEmail,
		WorkItems:       workItems,
		Attachments:     attachmentURLs,
		OrderURL:        orderURL,
		Status:          models.StatusToDo,
		Events:          []models.TaskEvent{},
		CreatedAt:       time.Now(),
		Version:         1,
	}

	if _, err := s.tasksCollection.InsertOne(ctx, task); err != nil {
		logging.Logger.Errorf("Event ID: TASK_CREATE_FILES_ORPHANED, Description: Insert failed for task %s, files remain under %s: %v", taskID, folder, err)
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateTask
		}
		return nil, fmt.Errorf("failed to create task: %v", err)
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Created task %s for %s with %d site(s)", taskID, bsNumber, len(bsLocation))
	return task, nil
}

// GetTask returns the task with the given id (case-insensitive) together
// with every report whose id starts with the task id.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*models.Task, []models.Report, error) {
	canonical := strings.ToUpper(taskID)

	var task models.Task
	err := s.tasksCollection.FindOne(ctx, bson.M{"taskId": canonical}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve task %s: %v", canonical, err)
	}

	cursor, err := s.reportsCollection.Find(ctx, bson.M{"reportId": bson.M{"$regex": "^" + regexp.QuoteMeta(canonical)}})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve reports for task %s: %v", canonical, err)
	}
	defer cursor.Close(ctx)

	reports := []models.Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, nil, fmt.Errorf("failed to decode reports for task %s: %v", canonical, err)
	}

	return &task, reports, nil
}

// ListTasks returns tasks visible to the actor, filtered at the query layer.
// Executors see tasks assigned to them, initiators their own, other roles
// everything.
func (s *TaskService) ListTasks(ctx context.Context, actor *utils.Claims, filter TaskListFilter) ([]models.Task, error) {
	// The stored user document is authoritative for the role: a token issued
	// before a promotion would otherwise scope this list differently from
	// the dashboard.
	role := models.UserRole(actor.Role)
	if user, err := s.users.GetByProviderID(ctx, actor.UserID); err == nil {
		role = user.Role
	}

	query := bson.M{}
	switch role {
	case models.RoleExecutor:
		query["executorId"] = actor.UserID
	case models.RoleInitiator:
		query["initiatorId"] = actor.UserID
	}

	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.Search != "" {
		pattern := regexp.QuoteMeta(filter.Search)
		query["$or"] = bson.A{
			bson.M{"taskName": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"bsNumber": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := s.tasksCollection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %v", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

// UpdateTask loads the task, applies the provided fields, saves the document
// once and notifies participants when the status changed. The save matches
// on the loaded version so concurrent updates fail with ErrVersionConflict
// instead of silently overwriting each other.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, upd TaskUpdate, actor *utils.Claims) (*models.Task, error) {
	canonical := strings.ToUpper(taskID)

	var task models.Task
	err := s.tasksCollection.FindOne(ctx, bson.M{"taskId": canonical}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve task %s: %v", canonical, err)
	}

	changes, err := applyTaskUpdate(ctx, &task, &upd, actor, s.users, time.Now())
	if err != nil {
		return nil, err
	}

	if upd.Multipart {
		if err := s.applyAttachmentChanges(&task, &upd); err != nil {
			return nil, err
		}
	}

	loadedVersion := task.Version
	task.Version = loadedVersion + 1

	result, err := s.tasksCollection.ReplaceOne(ctx, bson.M{"taskId": canonical, "version": loadedVersion}, &task)
	if err != nil {
		return nil, fmt.Errorf("failed to save task %s: %v", canonical, err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrVersionConflict
	}

	if len(changes) > 0 {
		first := changes[0]
		last := changes[len(changes)-1]
		comment := ""
		for _, c := range changes {
			if c.Comment != "" {
				comment = c.Comment
				break
			}
		}
		s.notifications.NotifyStatusChanged(&task, first.Old, last.New, actorDisplayName(actor), comment)
	}

	return &task, nil
}

// applyTaskUpdate mutates task in memory according to the update payload and
// returns the status transitions that occurred. Both the explicit status
// field and an executor change can each produce a transition within one
// request.
func applyTaskUpdate(ctx context.Context, task *models.Task, upd *TaskUpdate, actor *utils.Claims, users UserResolver, now time.Time) ([]StatusChange, error) {
	var changes []StatusChange

	if upd.Status != "" {
		newStatus := models.TaskStatus(upd.Status)
		if !models.IsValidStatus(newStatus) {
			return nil, ErrInvalidStatus
		}
		if newStatus != task.Status {
			if models.UserRole(actor.Role) != models.RoleAdmin && !models.CanTransition(task.Status, newStatus) {
				return nil, &InvalidTransitionError{From: string(task.Status), To: string(newStatus)}
			}
			oldStatus := task.Status
			task.Status = newStatus
			task.AppendStatusEvent(actorDisplayName(actor), actor.UserID, oldStatus, newStatus, upd.Comment, now)
			changes = append(changes, StatusChange{Old: oldStatus, New: newStatus, Comment: upd.Comment})
		}
	}

	if upd.ExecutorID != nil && *upd.ExecutorID != task.ExecutorID {
		task.ExecutorID = *upd.ExecutorID
		task.ExecutorName = ""
		task.ExecutorEmail = ""
		if task.ExecutorID != "" {
			if executor, err := users.GetByProviderID(ctx, task.ExecutorID); err == nil {
				task.ExecutorName = executor.Name
				task.ExecutorEmail = executor.Email
			}
		}

		// System-derived transition: assigning an executor moves the task to
		// "Assigned", clearing it returns the task to the backlog.
		derived := models.DerivedStatusForExecutor(task.ExecutorID)
		if derived != task.Status {
			oldStatus := task.Status
			task.Status = derived
			task.AppendStatusEvent(actorDisplayName(actor), actor.UserID, oldStatus, derived, "", now)
			changes = append(changes, StatusChange{Old: oldStatus, New: derived})
		}
	}

	if upd.InitiatorID != "" {
		task.InitiatorID = upd.InitiatorID
		if initiator, err := users.GetByProviderID(ctx, upd.InitiatorID); err == nil {
			task.InitiatorName = initiator.Name
			task.InitiatorEmail = initiator.Email
		}
	}

	if upd.TaskName != "" {
		task.TaskName = upd.TaskName
	}
	if upd.BsNumber != "" {
		task.BsNumber = upd.BsNumber
	}
	if upd.TaskDescription != "" {
		task.TaskDescription = upd.TaskDescription
	}
	if upd.DueDate != "" {
		if dueDate, ok := parseDueDate(upd.DueDate); ok {
			task.DueDate = dueDate
		}
	}
	if upd.Priority != "" && models.IsValidPriority(models.PriorityLevel(upd.Priority)) {
		task.Priority = models.PriorityLevel(upd.Priority)
	}

	return changes, nil
}

// applyAttachmentChanges keeps only the attachments the client listed as
// existing and appends freshly uploaded files. Dropped entries disappear
// from the document only; the files stay on disk.
func (s *TaskService) applyAttachmentChanges(task *models.Task, upd *TaskUpdate) error {
	keep := make(map[string]bool, len(upd.ExistingAttachments))
	for _, a := range upd.ExistingAttachments {
		keep[a] = true
	}

	retained := make([]string, 0, len(task.Attachments))
	for _, a := range task.Attachments {
		if keep[a] {
			retained = append(retained, a)
		}
	}
	task.Attachments = retained

	for _, file := range upd.NewAttachments {
		url, err := s.files.SaveUpdateAttachment(file)
		if err != nil {
			return err
		}
		task.Attachments = append(task.Attachments, url)
	}

	return nil
}

func parseDueDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func actorDisplayName(actor *utils.Claims) string {
	name := strings.TrimSpace(actor.Name)
	if name == "" {
		return "Unknown"
	}
	return name
}
