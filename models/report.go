package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReportStatus string

const (
	ReportPending ReportStatus = "Pending"
	ReportIssues  ReportStatus = "Issues"
	ReportFixed   ReportStatus = "Fixed"
	ReportAgreed  ReportStatus = "Agreed"
)

// Report is a field photo report produced against a task. ReportId starts
// with the task id it belongs to; the join is a prefix match, not a foreign
// key. Reports are written by the reports service and only read here.
type Report struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID    string             `bson:"reportId" json:"reportId"`
	Task        string             `bson:"task,omitempty" json:"task,omitempty"`
	Status      ReportStatus       `bson:"status" json:"status"`
	ExecutorID  string             `bson:"executorId,omitempty" json:"executorId,omitempty"`
	InitiatorID string             `bson:"initiatorId,omitempty" json:"initiatorId,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
