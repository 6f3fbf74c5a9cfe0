package expense

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const statement = `利用日,内容,金額（円）,メモ,領収書
2026/01/05,AMAZON.CO.JP,"1,980",,
2026/01/05,AMAZON.CO.JP,"1,980",,
2026/01/09,ヨドバシ,"△300",返品,済
2026/02/01,AMAZON.CO.JP,500,,
`

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.csv")
	if err := os.WriteFile(path, []byte(statement), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	got, err := Load(writeStatement(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Load() returned %d expenses, want 4", len(got))
	}

	if got[0].Vendor != "AMAZON.CO.JP" || got[0].Amount.String() != "1980" || got[0].UseDate.String() != "2026-01-05" {
		t.Errorf("expense[0] = %+v", got[0])
	}
	if got[2].Amount.String() != "-300" || !got[2].HasReceipt || got[2].Memo != "返品" {
		t.Errorf("expense[2] = %+v", got[2])
	}

	for _, e := range got {
		if !strings.HasPrefix(e.ExpenseID, "exp-") {
			t.Errorf("ExpenseID = %q, want synthetic id", e.ExpenseID)
		}
	}
	if got[0].ExpenseID == got[1].ExpenseID {
		t.Error("identical lines should get distinct ids")
	}

	again, err := Load(writeStatement(t))
	if err != nil {
		t.Fatal(err)
	}
	if again[1].ExpenseID != got[1].ExpenseID {
		t.Error("synthetic ids should be stable across loads")
	}
}

func TestFilterMonthAndNeedsReceipt(t *testing.T) {
	all, err := Load(writeStatement(t))
	if err != nil {
		t.Fatal(err)
	}

	jan := FilterMonth(all, 2026, time.January)
	if len(jan) != 3 {
		t.Fatalf("FilterMonth() = %d, want 3", len(jan))
	}
	pending := NeedsReceipt(jan)
	if len(pending) != 2 {
		t.Errorf("NeedsReceipt() = %d, want 2", len(pending))
	}
}

func TestFromRow_Errors(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]string
	}{
		{"missing date", map[string]string{"amount": "100"}},
		{"bad amount", map[string]string{"use_date": "2026-01-01", "amount": "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRow(tt.row); err == nil {
				t.Error("expected error")
			}
		})
	}
}
