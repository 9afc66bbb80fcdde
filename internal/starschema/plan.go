// Package starschema publishes the cleaned datasets as a star schema:
// enrollee at the centre, its four satellites keyed by enrollee_id and the
// city index as a dimension.
package starschema

import (
	"errors"
	"fmt"

	"hretl/internal/hr"
	"hretl/internal/storage"
)

// ErrSchemaConstraintViolation wraps every failure to declare the schema
// constraints, whether caught while validating the plan or reported by the
// database.
var ErrSchemaConstraintViolation = errors.New("schema constraint violation")

// Widths of the city key columns.
const (
	CityKeyLength = 255
	CityWidth     = 255
)

// Foreign key names.
const (
	FKEducation      = "fk_enrollee_edu"
	FKWorkExperience = "fk_enrollee_work"
	FKTrainingHours  = "fk_enrollee_train"
	FKEmployment     = "fk_enrollee_emp"
	FKCity           = "fk_city"
)

// WriteOrder is the order tables are replaced in. Children go first so a
// re-publish never drops a parent that is still referenced.
var WriteOrder = []string{
	hr.Education,
	hr.WorkExperience,
	hr.TrainingHours,
	hr.Employment,
	hr.Enrollee,
	hr.CityDevelopmentIndex,
}

// Plan returns the DDL that turns the six published tables into the star
// schema, in execution order.
func Plan() []storage.DDLOp {
	return []storage.DDLOp{
		storage.PrimaryKey(hr.Enrollee, hr.EnrolleeID, 0),
		storage.PrimaryKey(hr.Education, hr.EnrolleeID, 0),
		storage.PrimaryKey(hr.WorkExperience, hr.EnrolleeID, 0),
		storage.PrimaryKey(hr.TrainingHours, hr.EnrolleeID, 0),
		storage.PrimaryKey(hr.Employment, hr.EnrolleeID, 0),
		storage.PrimaryKey(hr.CityDevelopmentIndex, hr.CityIndex, CityKeyLength),
		storage.Widen(hr.Enrollee, hr.City, CityWidth),
		storage.Widen(hr.CityDevelopmentIndex, hr.CityIndex, CityWidth),
		storage.ForeignKey(FKEducation, hr.Education, hr.EnrolleeID, hr.Enrollee, hr.EnrolleeID),
		storage.ForeignKey(FKWorkExperience, hr.WorkExperience, hr.EnrolleeID, hr.Enrollee, hr.EnrolleeID),
		storage.ForeignKey(FKTrainingHours, hr.TrainingHours, hr.EnrolleeID, hr.Enrollee, hr.EnrolleeID),
		storage.ForeignKey(FKEmployment, hr.Employment, hr.EnrolleeID, hr.Enrollee, hr.EnrolleeID),
		storage.ForeignKey(FKCity, hr.Enrollee, hr.City, hr.CityDevelopmentIndex, hr.CityIndex),
	}
}

type colRef struct{ table, column string }

// ValidatePlan checks ops in order without touching a database. A foreign
// key must reference a column already declared as a primary key, and may not
// involve a column the plan widens later. A table gets at most one primary
// key. Every failure wraps ErrSchemaConstraintViolation.
func ValidatePlan(ops []storage.DDLOp) error {
	pending := map[colRef]int{}
	for _, op := range ops {
		if op.Kind == storage.WidenColumn {
			pending[colRef{op.Table, op.Column}]++
		}
	}

	pk := map[string]string{}
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("plan step %d: %w: %w", i+1, ErrSchemaConstraintViolation, err)
		}
		switch op.Kind {
		case storage.AddPrimaryKey:
			if prev, ok := pk[op.Table]; ok {
				return fmt.Errorf("plan step %d: %w: %s already has primary key %s", i+1, ErrSchemaConstraintViolation, op.Table, prev)
			}
			pk[op.Table] = op.Column
		case storage.WidenColumn:
			pending[colRef{op.Table, op.Column}]--
		case storage.AddForeignKey:
			if pk[op.RefTable] != op.RefColumn {
				return fmt.Errorf("plan step %d: %w: %s references %s(%s) before it is a primary key",
					i+1, ErrSchemaConstraintViolation, op.Name, op.RefTable, op.RefColumn)
			}
			for _, c := range []colRef{{op.Table, op.Column}, {op.RefTable, op.RefColumn}} {
				if pending[c] > 0 {
					return fmt.Errorf("plan step %d: %w: %s uses %s(%s) before it is widened",
						i+1, ErrSchemaConstraintViolation, op.Name, c.table, c.column)
				}
			}
		}
	}
	return nil
}
