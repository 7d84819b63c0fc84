package complexity

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/gantry/pkg/models"
)

func TestParseSelectionAll(t *testing.T) {
	for _, raw := range []string{"all", "ALL", ""} {
		sel, err := ParseSelection(raw)
		if err != nil {
			t.Fatalf("ParseSelection(%q) failed: %v", raw, err)
		}
		if !sel.All {
			t.Errorf("ParseSelection(%q) should select all", raw)
		}
	}
}

func TestParseSelectionIDList(t *testing.T) {
	sel, err := ParseSelection("3, 1,4")
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}
	if !reflect.DeepEqual(sel.IDs, []int{3, 1, 4}) {
		t.Errorf("unexpected ids %v", sel.IDs)
	}
}

func TestParseSelectionDeduplicates(t *testing.T) {
	sel, err := ParseSelection("2,2,3")
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}
	if !reflect.DeepEqual(sel.IDs, []int{2, 3}) {
		t.Errorf("unexpected ids %v", sel.IDs)
	}
}

func TestParseSelectionSingleID(t *testing.T) {
	sel, err := ParseSelection("7")
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}
	if !reflect.DeepEqual(sel.IDs, []int{7}) {
		t.Errorf("unexpected ids %v", sel.IDs)
	}
}

func TestParseSelectionRange(t *testing.T) {
	sel, err := ParseSelection("2..5")
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}
	if sel.From != 2 || sel.To != 5 || sel.All || sel.IDs != nil {
		t.Errorf("unexpected selection %+v", sel)
	}
}

func TestParseSelectionErrors(t *testing.T) {
	for _, raw := range []string{"abc", "1,abc", "5..2", "..3", "x..9"} {
		if _, err := ParseSelection(raw); err == nil {
			t.Errorf("ParseSelection(%q) should fail", raw)
		}
	}
}

func TestResolveExplicitIDMustExist(t *testing.T) {
	c := testCollection(models.Task{ID: 1, Title: "One"})
	if _, err := (Selection{IDs: []int{1, 9}}).Resolve(c); err == nil {
		t.Fatal("expected error for missing task 9")
	}
}

func TestResolveRangeSkipsMissingIDs(t *testing.T) {
	c := testCollection(
		models.Task{ID: 1, Title: "One"},
		models.Task{ID: 3, Title: "Three"},
		models.Task{ID: 8, Title: "Eight"},
	)
	tasks, err := (Selection{From: 1, To: 5}).Resolve(c)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 1 || tasks[1].ID != 3 {
		t.Errorf("unexpected tasks %v", taskIDsOf(tasks))
	}
}

func TestResolveAllSortsByID(t *testing.T) {
	c := testCollection(
		models.Task{ID: 5, Title: "Five"},
		models.Task{ID: 2, Title: "Two"},
		models.Task{ID: 9, Title: "Nine"},
	)
	tasks, err := (Selection{All: true}).Resolve(c)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := taskIDsOf(tasks); !reflect.DeepEqual(got, []int{2, 5, 9}) {
		t.Errorf("unexpected order %v", got)
	}
}

func taskIDsOf(tasks []models.Task) []int {
	ids := make([]int, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
