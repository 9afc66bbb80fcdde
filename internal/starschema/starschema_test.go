package starschema

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"hretl/internal/hr"
	"hretl/internal/storage"
	_ "hretl/internal/storage/sqlite"
	"hretl/internal/table"
)

type fakeRepo struct {
	calls   []string
	ddl     []storage.DDLOp
	failDDL error
}

func (f *fakeRepo) Close() {}
func (f *fakeRepo) ReadTable(context.Context, string) (*table.Table, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRepo) ReplaceTable(_ context.Context, t *table.Table) (int64, error) {
	f.calls = append(f.calls, "replace "+t.Name)
	return int64(t.Len()), nil
}
func (f *fakeRepo) ApplyDDL(_ context.Context, ops []storage.DDLOp) error {
	f.calls = append(f.calls, "ddl")
	f.ddl = ops
	return f.failDDL
}

func build(t *testing.T, name string, header []string, rows [][]any) *table.Table {
	t.Helper()
	tb, err := table.FromRows(name, header, rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return tb
}

func datasets(t *testing.T) map[string]*table.Table {
	t.Helper()
	return map[string]*table.Table{
		hr.Enrollee: build(t, hr.Enrollee, []string{"enrollee_id", "full_name", "city", "gender"}, [][]any{
			{int64(1), "Ann", "city_1", "Female"},
			{int64(2), "Bob", "city_2", "Non-binary"},
		}),
		hr.Education: build(t, hr.Education, []string{"enrollee_id", "education_level"}, [][]any{
			{int64(1), "Graduate"}, {int64(2), "Primary School"},
		}),
		hr.WorkExperience: build(t, hr.WorkExperience, []string{"enrollee_id", "experience", "company_size", "company_size_category"}, [][]any{
			{int64(1), int64(0), "<10", "Very Small"}, {int64(2), int64(-1), nil, "Unknown"},
		}),
		hr.TrainingHours: build(t, hr.TrainingHours, []string{"enrollee_id", "training_hours"}, [][]any{
			{int64(1), int64(36)}, {int64(2), int64(47)},
		}),
		hr.Employment: build(t, hr.Employment, []string{"enrollee_id", "employed"}, [][]any{
			{int64(1), 1.0}, {int64(2), 0.0},
		}),
		hr.CityDevelopmentIndex: build(t, hr.CityDevelopmentIndex, []string{"City", "City Development Index"}, [][]any{
			{"city_1", 0.92}, {"city_2", 0.62}, {"city_3", 0.7},
		}),
	}
}

func TestPlan_IsValidAndOrdered(t *testing.T) {
	t.Parallel()

	ops := Plan()
	if err := ValidatePlan(ops); err != nil {
		t.Fatalf("ValidatePlan(Plan()): %v", err)
	}
	var fks []string
	for _, op := range ops {
		if op.Kind == storage.AddForeignKey {
			fks = append(fks, op.Name)
		}
	}
	want := []string{FKEducation, FKWorkExperience, FKTrainingHours, FKEmployment, FKCity}
	if !reflect.DeepEqual(fks, want) {
		t.Fatalf("fks=%v, want %v", fks, want)
	}
	if ops[5].Table != hr.CityDevelopmentIndex || ops[5].Column != "City" || ops[5].KeyLength != 255 {
		t.Fatalf("city pk=%s", ops[5])
	}
	if got := ops[len(ops)-1].String(); got != "add_foreign_key enrollee(city) -> city_development_index(City) name=fk_city" {
		t.Fatalf("last op=%q", got)
	}
}

func TestValidatePlan_Rejects(t *testing.T) {
	t.Parallel()

	satelliteFK := storage.ForeignKey(FKEducation, hr.Education, hr.EnrolleeID, hr.Enrollee, hr.EnrolleeID)
	tests := []struct {
		name string
		ops  []storage.DDLOp
		want string
	}{
		{
			name: "satellite_fk_before_enrollee_pk",
			ops:  []storage.DDLOp{satelliteFK, storage.PrimaryKey(hr.Enrollee, hr.EnrolleeID, 0)},
			want: "before it is a primary key",
		},
		{
			name: "fk_on_wrong_column",
			ops: []storage.DDLOp{
				storage.PrimaryKey(hr.Enrollee, hr.EnrolleeID, 0),
				storage.ForeignKey("fk_x", hr.Education, hr.EnrolleeID, hr.Enrollee, "full_name"),
			},
			want: "before it is a primary key",
		},
		{
			name: "city_fk_before_widen",
			ops: []storage.DDLOp{
				storage.PrimaryKey(hr.CityDevelopmentIndex, hr.CityIndex, 255),
				storage.ForeignKey(FKCity, hr.Enrollee, hr.City, hr.CityDevelopmentIndex, hr.CityIndex),
				storage.Widen(hr.Enrollee, hr.City, 255),
			},
			want: "before it is widened",
		},
		{
			name: "second_primary_key",
			ops: []storage.DDLOp{
				storage.PrimaryKey(hr.Enrollee, hr.EnrolleeID, 0),
				storage.PrimaryKey(hr.Enrollee, hr.City, 0),
			},
			want: "already has primary key",
		},
		{
			name: "incomplete_op",
			ops:  []storage.DDLOp{storage.Widen(hr.Enrollee, hr.City, 0)},
			want: "length must be positive",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePlan(tc.ops)
			if !errors.Is(err, ErrSchemaConstraintViolation) {
				t.Fatalf("want ErrSchemaConstraintViolation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestPublish_WriteOrderThenDDL(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	var lines []string
	p := &Publisher{Logger: loggerFunc(func(format string, v ...any) { lines = append(lines, fmt.Sprintf(format, v...)) })}
	res, err := p.Publish(context.Background(), repo, datasets(t))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := []string{
		"replace enrollies_education", "replace work_experience", "replace training_hours",
		"replace employment", "replace enrollee", "replace city_development_index", "ddl",
	}
	if !reflect.DeepEqual(repo.calls, want) {
		t.Fatalf("calls=%v, want %v", repo.calls, want)
	}
	if !reflect.DeepEqual(repo.ddl, Plan()) || len(res.DDL) != len(Plan()) {
		t.Fatalf("ddl=%v", repo.ddl)
	}
	if res.Rows[hr.CityDevelopmentIndex] != 3 || res.Rows[hr.Enrollee] != 2 {
		t.Fatalf("rows=%v", res.Rows)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "stage=publish ddl add_primary_key enrollee(enrollee_id)") {
		t.Fatalf("ddl not logged: %v", lines)
	}
}

type loggerFunc func(format string, v ...any)

func (f loggerFunc) Printf(format string, v ...any) { f(format, v...) }

func TestPublish_InvalidPlanWritesNothing(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	p := &Publisher{Plan: []storage.DDLOp{
		storage.ForeignKey(FKEmployment, hr.Employment, hr.EnrolleeID, hr.Enrollee, hr.EnrolleeID),
	}}
	_, err := p.Publish(context.Background(), repo, datasets(t))
	if !errors.Is(err, ErrSchemaConstraintViolation) {
		t.Fatalf("want ErrSchemaConstraintViolation, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("repository touched: %v", repo.calls)
	}
}

func TestPublish_DDLFailureWrapped(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("duplicate entry")
	_, err := (&Publisher{}).Publish(context.Background(), &fakeRepo{failDDL: dbErr}, datasets(t))
	if !errors.Is(err, ErrSchemaConstraintViolation) || !errors.Is(err, dbErr) {
		t.Fatalf("err=%v", err)
	}
}

func TestPublish_MissingDataset(t *testing.T) {
	t.Parallel()

	in := datasets(t)
	delete(in, hr.TrainingHours)
	repo := &fakeRepo{}
	_, err := (&Publisher{}).Publish(context.Background(), repo, in)
	if !errors.Is(err, ErrMissingDataset) || !strings.Contains(err.Error(), hr.TrainingHours) {
		t.Fatalf("err=%v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("repository touched: %v", repo.calls)
	}
}

func openSQLite(t *testing.T) storage.Repository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "star.db") + "?_pragma=foreign_keys(1)"
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func keys(t *testing.T, tb *table.Table, col string) []string {
	t.Helper()
	c, ok := tb.Column(col)
	if !ok {
		t.Fatalf("column %q missing in %v", col, tb.Names())
	}
	out := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		k, _ := table.NormalizeKey(v)
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestPublish_SQLiteRoundTripAndRepublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openSQLite(t)
	in := datasets(t)

	for i := 0; i < 2; i++ {
		if _, err := (&Publisher{}).Publish(ctx, repo, in); err != nil {
			t.Fatalf("Publish #%d: %v", i+1, err)
		}
	}
	for _, name := range WriteOrder {
		out, err := repo.ReadTable(ctx, name)
		if err != nil {
			t.Fatalf("ReadTable %s: %v", name, err)
		}
		key := hr.EnrolleeID
		if name == hr.CityDevelopmentIndex {
			key = hr.CityIndex
		}
		if got, want := keys(t, out, key), keys(t, in[name], key); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s keys=%v, want %v", name, got, want)
		}
		if !reflect.DeepEqual(out.Names(), in[name].Names()) {
			t.Fatalf("%s columns=%v, want %v", name, out.Names(), in[name].Names())
		}
	}
}

func TestPublish_SQLiteConstraintFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(map[string]*table.Table)
	}{
		{
			name: "duplicate_enrollee_id",
			mutate: func(in map[string]*table.Table) {
				c, _ := in[hr.Enrollee].Column(hr.EnrolleeID)
				c.Values[1] = int64(1)
			},
		},
		{
			name: "orphan_satellite_key",
			mutate: func(in map[string]*table.Table) {
				c, _ := in[hr.Employment].Column(hr.EnrolleeID)
				c.Values[1] = int64(42)
			},
		},
		{
			name: "unknown_city",
			mutate: func(in map[string]*table.Table) {
				c, _ := in[hr.Enrollee].Column(hr.City)
				c.Values[0] = "city_404"
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := datasets(t)
			tc.mutate(in)
			_, err := (&Publisher{}).Publish(context.Background(), openSQLite(t), in)
			if !errors.Is(err, ErrSchemaConstraintViolation) {
				t.Fatalf("want ErrSchemaConstraintViolation, got %v", err)
			}
		})
	}
}
