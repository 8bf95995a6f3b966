package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStatus string

const (
	StatusToDo     TaskStatus = "To do"
	StatusAssigned TaskStatus = "Assigned"
	StatusAtWork   TaskStatus = "At work"
	StatusDone     TaskStatus = "Done"
	StatusAgreed   TaskStatus = "Agreed"
)

type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
	PriorityUrgent PriorityLevel = "urgent"
)

// allowedTransitions is the workflow table for non-admin actors. A status may
// move one step forward or one step back; admins may set any status.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	StatusToDo:     {StatusAssigned},
	StatusAssigned: {StatusAtWork, StatusToDo},
	StatusAtWork:   {StatusDone, StatusAssigned},
	StatusDone:     {StatusAgreed, StatusAtWork},
	StatusAgreed:   {StatusDone},
}

// IsValidStatus reports whether s is one of the workflow statuses.
func IsValidStatus(s TaskStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether the workflow table allows moving from one
// status to another. Identical statuses are a no-op and always allowed.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidPriority reports whether p is a known priority level.
func IsValidPriority(p PriorityLevel) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

const ActionStatusChanged = "STATUS_CHANGED"

type TaskEventDetails struct {
	OldStatus TaskStatus `json:"oldStatus" bson:"oldStatus"`
	NewStatus TaskStatus `json:"newStatus" bson:"newStatus"`
	Comment   string     `json:"comment,omitempty" bson:"comment,omitempty"`
}

// TaskEvent is one entry of the append-only audit trail on a task. Entries are
// never edited or removed after being appended.
type TaskEvent struct {
	Action   string           `json:"action" bson:"action"`
	Author   string           `json:"author" bson:"author"`
	AuthorID string           `json:"authorId" bson:"authorId"`
	Date     time.Time        `json:"date" bson:"date"`
	Details  TaskEventDetails `json:"details" bson:"details"`
}

// WorkItem is one line entry of work performed under a task. IDs are generated
// when missing and are not stable keys across fetches.
type WorkItem struct {
	ID       string  `json:"id" bson:"id"`
	WorkType string  `json:"workType" bson:"workType"`
	Quantity float64 `json:"quantity" bson:"quantity"`
	Unit     string  `json:"unit" bson:"unit"`
	Note     string  `json:"note,omitempty" bson:"note,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// BsLocation ties one base-station site name to its registry coordinates.
type BsLocation struct {
	Name        string      `json:"name" bson:"name"`
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
}

type Task struct {
	ID              primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	TaskID          string             `json:"taskId" bson:"taskId"`
	TaskName        string             `json:"taskName" bson:"taskName"`
	BsNumber        string             `json:"bsNumber" bson:"bsNumber"`
	BsLocation      []BsLocation       `json:"bsLocation" bson:"bsLocation"`
	BsAddress       string             `json:"bsAddress" bson:"bsAddress"`
	TotalCost       float64            `json:"totalCost" bson:"totalCost"`
	Priority        PriorityLevel      `json:"priority" bson:"priority"`
	DueDate         time.Time          `json:"dueDate" bson:"dueDate"`
	TaskDescription string             `json:"taskDescription" bson:"taskDescription"`

	AuthorID    string `json:"authorId" bson:"authorId"`
	AuthorName  string `json:"authorName" bson:"authorName"`
	AuthorEmail string `json:"authorEmail" bson:"authorEmail"`

	InitiatorID    string `json:"initiatorId" bson:"initiatorId"`
	InitiatorName  string `json:"initiatorName" bson:"initiatorName"`
	InitiatorEmail string `json:"initiatorEmail" bson:"initiatorEmail"`

	ExecutorID    string `json:"executorId" bson:"executorId"`
	ExecutorName  string `json:"executorName" bson:"executorName"`
	ExecutorEmail string `json:"executorEmail" bson:"executorEmail"`

	WorkItems   []WorkItem  `json:"workItems" bson:"workItems"`
	Attachments []string    `json:"attachments" bson:"attachments"`
	OrderURL    string      `json:"orderUrl" bson:"orderUrl"`
	Status      TaskStatus  `json:"status" bson:"status"`
	Events      []TaskEvent `json:"events" bson:"events"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`

	// Version guards against concurrent PATCH requests overwriting each
	// other; saves match on the loaded value and increment it.
	Version int64 `json:"version" bson:"version"`
}

// AppendStatusEvent records a status transition in the audit trail.
func (t *Task) AppendStatusEvent(actorName, actorID string, oldStatus, newStatus TaskStatus, comment string, at time.Time) {
	t.Events = append(t.Events, TaskEvent{
		Action:   ActionStatusChanged,
		Author:   actorName,
		AuthorID: actorID,
		Date:     at,
		Details: TaskEventDetails{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   comment,
		},
	})
}

// DerivedStatusForExecutor returns the status implied by an executor change:
// a present executor means the task is assigned, an empty one returns it to
// the backlog.
func DerivedStatusForExecutor(executorID string) TaskStatus {
	if executorID != "" {
		return StatusAssigned
	}
	return StatusToDo
}
