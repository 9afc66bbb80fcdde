// Package cleaning holds the per-dataset cleaning recipes.
//
// Each recipe mutates the table it is given; the caller keeps ownership.
// Conversion failures and absent fill columns are logged and skipped, the
// way a column-at-a-time cleaning pass degrades. Recoder failures are
// returned because the recoded columns are required downstream.
package cleaning

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"hretl/internal/hr"
	"hretl/internal/table"
	"hretl/internal/transformer"
	"hretl/internal/transformer/builtin"
)

// Cleaner runs the recipes.
type Cleaner struct {
	// Logger receives per-column diagnostics. Nil discards.
	Logger transformer.Logger

	// Info, when set, receives a column summary after each conversion pass.
	Info io.Writer
}

func (c Cleaner) logger() transformer.Logger {
	if c.Logger == nil {
		return transformer.DiscardLogger
	}
	return c.Logger
}

// Clean dispatches to the recipe for t.Name. Tables without a recipe are
// left alone.
func (c Cleaner) Clean(t *table.Table) error {
	switch t.Name {
	case hr.Enrollee:
		return c.Enrollee(t)
	case hr.Education:
		return c.Education(t)
	case hr.WorkExperience:
		return c.WorkExperience(t)
	case hr.CityDevelopmentIndex:
		return c.CityIndex(t)
	default:
		return nil
	}
}

// Enrollee converts every non-key column to text and fills gender.
func (c Cleaner) Enrollee(t *table.Table) error {
	c.convert(t, transformer.ConvertAllExcept(t, []string{hr.EnrolleeID}, table.Text))
	c.fillDefaults(t, hr.Enrollee, hr.Gender)
	return nil
}

// Education converts every non-key column to text and fills the three
// education defaults.
func (c Cleaner) Education(t *table.Table) error {
	c.convert(t, transformer.ConvertAllExcept(t, []string{hr.EnrolleeID}, table.Text))
	c.fillDefaults(t, hr.Education, hr.EnrolledUniversity, hr.EducationLevel, hr.MajorDiscipline)
	return nil
}

// WorkExperience fills company_type, converts the text columns, recodes
// experience and last_new_job to integers and buckets company_size.
func (c Cleaner) WorkExperience(t *table.Table) error {
	c.fillDefaults(t, hr.WorkExperience, hr.CompanyType)
	c.convert(t, transformer.Convert(t, []string{hr.CompanyType, hr.RelevantExperience}, table.Text))

	recoders := []builtin.Recoder{
		builtin.Sentinel{
			Column:    hr.Experience,
			Tokens:    hr.ExperienceTokens,
			Missing:   hr.MissingSentinel,
			FillFirst: true,
		},
		builtin.Bucket{
			Source:  hr.CompanySize,
			Target:  hr.CompanySizeCategory,
			Mapping: hr.CompanySizeBuckets,
			Default: builtin.DefaultBucketLabel,
		},
		builtin.Sentinel{
			Column:  hr.LastNewJob,
			Tokens:  hr.LastNewJobTokens,
			Missing: hr.MissingSentinel,
		},
	}
	var errs []error
	for _, r := range recoders {
		if err := r.Apply(t); err != nil {
			c.logger().Printf("stage=clean dataset=%s recode error: %v", t.Name, err)
			errs = append(errs, err)
			continue
		}
		if b, ok := r.(builtin.Bucket); ok {
			c.logLabelCounts(t, b)
		}
	}
	return errors.Join(errs...)
}

// logLabelCounts prints how many rows landed in each label b can produce,
// zero counts included, in label order.
func (c Cleaner) logLabelCounts(t *table.Table, b builtin.Bucket) {
	col, ok := t.Column(b.Target)
	if !ok {
		return
	}
	labels := b.Labels()
	counts := make(map[string]int, len(labels))
	for _, v := range col.Values {
		if s, ok := v.(string); ok {
			counts[s]++
		}
	}
	names := make([]string, 0, len(labels))
	for l := range labels {
		names = append(names, l)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%d", n, counts[n])
	}
	c.logger().Printf("stage=clean dataset=%s column=%s counts: %s", t.Name, b.Target, strings.Join(parts, " "))
}

// CityIndex converts the City key column to text.
func (c Cleaner) CityIndex(t *table.Table) error {
	c.convert(t, transformer.Convert(t, []string{hr.CityIndex}, table.Text))
	return nil
}

func (c Cleaner) convert(t *table.Table, rep transformer.ConvertReport) {
	l := c.logger()
	l.Printf("stage=clean dataset=%s convert to %s", t.Name, rep.Target)
	rep.Log(l)
	if !rep.OK() {
		l.Printf("stage=clean dataset=%s convert to %s incomplete: %v", t.Name, rep.Target, rep.Err())
	}
	if c.Info != nil {
		if err := t.Info(c.Info); err != nil {
			l.Printf("stage=clean dataset=%s info error: %v", t.Name, err)
		}
	}
}

func (c Cleaner) fillDefaults(t *table.Table, dataset string, columns ...string) {
	l := c.logger()
	for _, col := range columns {
		val, ok := hr.Defaults[dataset][col]
		if !ok {
			panic(fmt.Sprintf("cleaning: no default for %s.%s", dataset, col))
		}
		n, err := transformer.FillMissing(t, col, val)
		if err != nil {
			l.Printf("stage=clean dataset=%s fill column=%s error: %v", t.Name, col, err)
			continue
		}
		l.Printf("stage=clean dataset=%s fill column=%s value=%q filled=%d", t.Name, col, val, n)
	}
}
