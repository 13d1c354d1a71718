package dbtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
)

type Class struct {
	Program feeModel.ProgramModel
	Class   feeModel.AcademyClassModel
}

// SeedClass creates a program with one core course of coreFee and a class
// starting at start. Registration fee falls back to the default plan.
func SeedClass(t testing.TB, db *gorm.DB, pt feeModel.ProgramType, coreFee int64, start time.Time) Class {
	t.Helper()
	p := feeModel.ProgramModel{
		ProgramName: "Program " + string(pt),
		ProgramType: pt,
	}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&feeModel.CourseModel{
		CourseProgramID: p.ProgramID,
		CourseName:      "Core",
		CourseFee:       decimal.NewFromInt(coreFee),
		CourseIsCore:    true,
	}).Error)
	c := feeModel.AcademyClassModel{
		ClassProgramID: p.ProgramID,
		ClassName:      "Batch 1",
		ClassStartDate: &start,
	}
	require.NoError(t, db.Create(&c).Error)
	return Class{Program: p, Class: c}
}
