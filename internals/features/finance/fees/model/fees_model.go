// file: internals/features/finance/fees/model/fees_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProgramType string

const (
	ProgramTypeOnline ProgramType = "online"
	ProgramTypeOnsite ProgramType = "onsite"
)

func (p ProgramType) Valid() bool {
	return p == ProgramTypeOnline || p == ProgramTypeOnsite
}

/* ===================== programs ===================== */

type ProgramModel struct {
	ProgramID              uuid.UUID       `gorm:"column:program_id;type:uuid;primaryKey" json:"program_id"`
	ProgramName            string          `gorm:"column:program_name;type:varchar(160);not null" json:"program_name"`
	ProgramType            ProgramType     `gorm:"column:program_type;type:varchar(10);not null" json:"program_type"`
	ProgramBaseFee         decimal.Decimal `gorm:"column:program_base_fee;type:numeric(14,2);not null;default:0" json:"program_base_fee"`
	ProgramRegistrationFee decimal.Decimal `gorm:"column:program_registration_fee;type:numeric(14,2);not null;default:0" json:"program_registration_fee"`

	ProgramCreatedAt time.Time `gorm:"column:program_created_at;autoCreateTime" json:"program_created_at"`
	ProgramUpdatedAt time.Time `gorm:"column:program_updated_at;autoUpdateTime" json:"program_updated_at"`
}

func (ProgramModel) TableName() string { return "programs" }

func (m *ProgramModel) BeforeCreate(tx *gorm.DB) error {
	if m.ProgramID == uuid.Nil {
		m.ProgramID = uuid.New()
	}
	return nil
}

/* ===================== courses ===================== */

type CourseModel struct {
	CourseID        uuid.UUID       `gorm:"column:course_id;type:uuid;primaryKey" json:"course_id"`
	CourseProgramID uuid.UUID       `gorm:"column:course_program_id;type:uuid;not null;index" json:"course_program_id"`
	CourseName      string          `gorm:"column:course_name;type:varchar(160);not null" json:"course_name"`
	CourseFee       decimal.Decimal `gorm:"column:course_fee;type:numeric(14,2);not null;default:0" json:"course_fee"`
	CourseIsCore    bool            `gorm:"column:course_is_core;not null" json:"course_is_core"`

	CourseCreatedAt time.Time `gorm:"column:course_created_at;autoCreateTime" json:"course_created_at"`
	CourseUpdatedAt time.Time `gorm:"column:course_updated_at;autoUpdateTime" json:"course_updated_at"`
}

func (CourseModel) TableName() string { return "courses" }

func (m *CourseModel) BeforeCreate(tx *gorm.DB) error {
	if m.CourseID == uuid.Nil {
		m.CourseID = uuid.New()
	}
	return nil
}

/* ===================== academy_classes (batch) ===================== */

type AcademyClassModel struct {
	ClassID        uuid.UUID  `gorm:"column:class_id;type:uuid;primaryKey" json:"class_id"`
	ClassProgramID uuid.UUID  `gorm:"column:class_program_id;type:uuid;not null;index" json:"class_program_id"`
	ClassName      string     `gorm:"column:class_name;type:varchar(160);not null" json:"class_name"`
	ClassStartDate *time.Time `gorm:"column:class_start_date" json:"class_start_date"`

	ClassCreatedAt time.Time `gorm:"column:class_created_at;autoCreateTime" json:"class_created_at"`
	ClassUpdatedAt time.Time `gorm:"column:class_updated_at;autoUpdateTime" json:"class_updated_at"`
}

func (AcademyClassModel) TableName() string { return "academy_classes" }

func (m *AcademyClassModel) BeforeCreate(tx *gorm.DB) error {
	if m.ClassID == uuid.Nil {
		m.ClassID = uuid.New()
	}
	return nil
}
