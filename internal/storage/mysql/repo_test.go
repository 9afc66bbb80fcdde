package mysql

import (
	"reflect"
	"strings"
	"testing"

	"hretl/internal/storage"
	"hretl/internal/table"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tb, err := table.FromRows("enrollee", []string{"enrollee_id", "city", "score", "active"}, [][]any{
		{int64(1), "city_103", 0.5, true},
	})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	got, err := buildCreateTableSQL(tb)
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE `enrollee` (\n  `enrollee_id` BIGINT,\n  `city` TEXT,\n  `score` DOUBLE,\n  `active` BOOLEAN\n)"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	if _, err := buildCreateTableSQL(table.New("empty")); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("company_course.training_hours", []string{"enrollee_id", "training_hours"}, [][]any{
		{int64(1), int64(36)},
		{int64(2), nil},
	})
	want := "INSERT INTO `company_course`.`training_hours` (`enrollee_id`, `training_hours`) VALUES (?, ?), (?, ?)"
	if q != want {
		t.Fatalf("q=%q, want %q", q, want)
	}
	if !reflect.DeepEqual(args, []any{int64(1), int64(36), int64(2), nil}) {
		t.Fatalf("args=%v", args)
	}
}

func TestBuildDDLSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   storage.DDLOp
		want string
	}{
		{storage.PrimaryKey("enrollee", "enrollee_id", 0), "ALTER TABLE `enrollee` ADD PRIMARY KEY (`enrollee_id`)"},
		{storage.PrimaryKey("city_development_index", "City", 255), "ALTER TABLE `city_development_index` ADD PRIMARY KEY (`City`(255))"},
		{storage.Widen("enrollee", "city", 255), "ALTER TABLE `enrollee` MODIFY `city` VARCHAR(255)"},
		{storage.ForeignKey("fk_enrollee_edu", "enrollies_education", "enrollee_id", "enrollee", "enrollee_id"),
			"ALTER TABLE `enrollies_education` ADD CONSTRAINT `fk_enrollee_edu` FOREIGN KEY (`enrollee_id`) REFERENCES `enrollee`(`enrollee_id`)"},
		{storage.ForeignKey("fk_city", "enrollee", "city", "city_development_index", "City"),
			"ALTER TABLE `enrollee` ADD CONSTRAINT `fk_city` FOREIGN KEY (`city`) REFERENCES `city_development_index`(`City`)"},
	}
	for _, tc := range tests {
		got, err := buildDDLSQL(tc.op)
		if err != nil {
			t.Fatalf("buildDDLSQL(%s): %v", tc.op, err)
		}
		if got != tc.want {
			t.Fatalf("got  %q\nwant %q", got, tc.want)
		}
	}

	if _, err := buildDDLSQL(storage.Widen("enrollee", "city", 0)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestMyIdent_Escapes(t *testing.T) {
	t.Parallel()

	if got := myIdent("a`b"); got != "`a``b`" {
		t.Fatalf("myIdent=%q", got)
	}
	if got := myTableIdent(" db . t "); !strings.EqualFold(got, "`db`.`t`") {
		t.Fatalf("myTableIdent=%q", got)
	}
}
