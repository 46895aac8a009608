package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FieldType enumerates the value types a template field can declare.
// Field-type validation happens at the request layer; the entry payload
// itself is stored as-is.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeDate   FieldType = "date"
	FieldTypeBool   FieldType = "bool"
	FieldTypeSelect FieldType = "select"
)

// Payload is the dynamic field-name -> value document an entry records.
// Its shape is suggested by the template's fields but not enforced here:
// extra or missing keys are tolerated at the data layer.
type Payload map[string]any

// TemplateField is one named, typed column of a logbook template.
type TemplateField struct {
	Name     string    `bson:"name" json:"name"`
	Type     FieldType `bson:"type" json:"type"`
	Required bool      `bson:"required" json:"required"`
	Options  []string  `bson:"options,omitempty" json:"options,omitempty"`
}

// Template is a logbook definition entries are written against.
type Template struct {
	ID            bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name          string          `bson:"name" json:"name"`
	InstitutionID *bson.ObjectID  `bson:"institutionId,omitempty" json:"institutionId,omitempty"`
	IsAssessment  bool            `bson:"isAssessment" json:"isAssessment"`
	Fields        []TemplateField `bson:"fields" json:"fields"`
	CreatedBy     bson.ObjectID   `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// Entry is one dated submission against a template.
type Entry struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TemplateID bson.ObjectID `bson:"templateId" json:"templateId"`
	WriterID   bson.ObjectID `bson:"writerId" json:"writerId"`
	Payload    Payload       `bson:"payload" json:"payload"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Role is one of the closed per-template role set (Owner, Supervisor,
// Editor, Viewer). Roles are looked up by name, case-insensitively.
type Role struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description,omitempty" json:"description"`
	IsSystem    bool          `bson:"isSystem" json:"isSystem"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// AccessGrant assigns a role to a user on one template. A user holds at
// most one role per template; granting again replaces the prior role.
type AccessGrant struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     bson.ObjectID `bson:"userId" json:"userId"`
	TemplateID bson.ObjectID `bson:"templateId" json:"templateId"`
	RoleID     bson.ObjectID `bson:"roleId" json:"roleId"`
	GrantedBy  bson.ObjectID `bson:"grantedBy" json:"grantedBy"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// VerificationRecord tracks one supervisor's decision on one entry.
// At most one record exists per (entry, supervisor) pair; a nil DecidedAt
// means the record is still pending.
type VerificationRecord struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	EntryID      bson.ObjectID `bson:"entryId" json:"entryId"`
	SupervisorID bson.ObjectID `bson:"supervisorId" json:"supervisorId"`
	Approved     bool          `bson:"approved" json:"approved"`
	DecidedAt    *time.Time    `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`
	Notes        string        `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Decided reports whether a supervisor has rendered a decision on this
// record (approve or reject).
func (r *VerificationRecord) Decided() bool {
	return r.DecidedAt != nil
}

// Status returns the record's state as a display string.
func (r *VerificationRecord) Status() string {
	if r.DecidedAt == nil {
		return "Pending"
	}
	if r.Approved {
		return "Approved"
	}
	return "Rejected"
}

// VerificationProgress is the approved-over-required tuple shown in
// progress bars. TotalSupervisors is always the live supervisor count,
// not the number of existing records.
type VerificationProgress struct {
	Approved         int `json:"approved"`
	TotalSupervisors int `json:"totalSupervisors"`
}

// VerificationStatus is the full per-entry report. When the template has
// no supervisors, RequiresVerification is false and the entry is
// trivially verified; callers render that as "N/A" rather than "0/0".
type VerificationStatus struct {
	EntryID              bson.ObjectID `json:"entryId"`
	RequiresVerification bool          `json:"requiresVerification"`
	Verified             bool          `json:"verified"`
	Approved             int           `json:"approved"`
	Rejected             int           `json:"rejected"`
	Pending              int           `json:"pending"`
	TotalSupervisors     int           `json:"totalSupervisors"`
}

func GetEntryIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "templateId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "writerId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}
}

func GetAccessGrantIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "templateId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "templateId", Value: 1},
				{Key: "roleId", Value: 1},
			},
		},
	}
}

// The unique (entryId, supervisorId) index is what makes the
// create-if-absent and decide upserts atomic.
func GetVerificationRecordIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "entryId", Value: 1},
				{Key: "supervisorId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "supervisorId", Value: 1},
				{Key: "decidedAt", Value: 1},
			},
		},
	}
}

func GetRoleIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
}
