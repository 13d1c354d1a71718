// file: internals/features/finance/enrollments/model/enrollment_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentSuspended EnrollmentStatus = "suspended"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

/* ===================== applications ===================== */

type ApplicationModel struct {
	ApplicationID         uuid.UUID         `gorm:"column:application_id;type:uuid;primaryKey" json:"application_id"`
	ApplicationStudentID  uuid.UUID         `gorm:"column:application_student_id;type:uuid;not null;index:idx_application_student_program" json:"application_student_id"`
	ApplicationProgramID  uuid.UUID         `gorm:"column:application_program_id;type:uuid;not null;index:idx_application_student_program" json:"application_program_id"`
	ApplicationStatus     ApplicationStatus `gorm:"column:application_status;type:varchar(20);not null;default:'pending'" json:"application_status"`
	ApplicationReviewedBy *uuid.UUID        `gorm:"column:application_reviewed_by;type:uuid" json:"application_reviewed_by"`
	ApplicationReviewedAt *time.Time        `gorm:"column:application_reviewed_at" json:"application_reviewed_at"`

	ApplicationCreatedAt time.Time `gorm:"column:application_created_at;autoCreateTime" json:"application_created_at"`
	ApplicationUpdatedAt time.Time `gorm:"column:application_updated_at;autoUpdateTime" json:"application_updated_at"`
}

func (ApplicationModel) TableName() string { return "applications" }

func (m *ApplicationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ApplicationID == uuid.Nil {
		m.ApplicationID = uuid.New()
	}
	return nil
}

/* ===================== enrollments ===================== */

type EnrollmentModel struct {
	EnrollmentID        uuid.UUID        `gorm:"column:enrollment_id;type:uuid;primaryKey" json:"enrollment_id"`
	EnrollmentStudentID uuid.UUID        `gorm:"column:enrollment_student_id;type:uuid;not null;uniqueIndex:uq_enrollment_student_program" json:"enrollment_student_id"`
	EnrollmentProgramID uuid.UUID        `gorm:"column:enrollment_program_id;type:uuid;not null;uniqueIndex:uq_enrollment_student_program" json:"enrollment_program_id"`
	EnrollmentClassID   *uuid.UUID       `gorm:"column:enrollment_class_id;type:uuid;index" json:"enrollment_class_id"`
	EnrollmentStatus    EnrollmentStatus `gorm:"column:enrollment_status;type:varchar(20);not null;default:'pending'" json:"enrollment_status"`

	EnrollmentCreatedAt time.Time `gorm:"column:enrollment_created_at;autoCreateTime" json:"enrollment_created_at"`
	EnrollmentUpdatedAt time.Time `gorm:"column:enrollment_updated_at;autoUpdateTime" json:"enrollment_updated_at"`
}

func (EnrollmentModel) TableName() string { return "enrollments" }

func (m *EnrollmentModel) BeforeCreate(tx *gorm.DB) error {
	if m.EnrollmentID == uuid.Nil {
		m.EnrollmentID = uuid.New()
	}
	return nil
}
