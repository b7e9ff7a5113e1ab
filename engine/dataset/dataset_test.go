package dataset

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/HansardGraph/hansard-mvp/engine/domain"
	"github.com/xuri/excelize/v2"
)

func TestFromRecordsNormalizesHeaders(t *testing.T) {
	rows := FromRecords(
		[]string{"UID", "Type", "Corporate Author"},
		[][]string{{"DEB_1", "Written questions", "Department of Health"}},
	)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0].Field(domain.FieldCorporateAuthor); got != "Department of Health" {
		t.Fatalf("CorporateAuthor = %q", got)
	}
}

func TestFromRecordsShortRecord(t *testing.T) {
	rows := FromRecords(
		[]string{"UID", "Type", "Subject"},
		[][]string{{"DEB_1", "Oral questions"}},
	)
	if rows[0].Has(domain.FieldSubject) {
		t.Fatal("missing trailing cell must read as absent")
	}
}

func TestFromRecordsMintsUID(t *testing.T) {
	records := [][]string{{"", "Written questions", "Health"}}
	first := FromRecords([]string{"UID", "Type", "Subject"}, records)
	second := FromRecords([]string{"UID", "Type", "Subject"}, records)

	uid := first[0].UID()
	if !strings.HasPrefix(uid, "DEB_") || len(uid) != len("DEB_")+10 {
		t.Fatalf("unexpected minted UID %q", uid)
	}
	if uid != second[0].UID() {
		t.Fatal("minted UIDs must be deterministic across runs")
	}
}

func TestMintUIDDistinguishesPositions(t *testing.T) {
	fields := map[string]string{"Type": "Oral questions"}
	if MintUID(0, fields) == MintUID(1, fields) {
		t.Fatal("identical rows at different positions must get distinct UIDs")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debates.xlsx")

	f := excelize.NewFile()
	header := []any{"UID", "Type", "Member", "Member Party"}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		t.Fatal(err)
	}
	row := []any{"DEB_1", "Written questions", "Jane Smith", "Labour"}
	if err := f.SetSheetRow(DefaultSheet, "A2", &row); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	rows, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].UID() != "DEB_1" || rows[0].Field(domain.FieldMember) != "Jane Smith" {
		t.Fatalf("unexpected row: uid=%q member=%q", rows[0].UID(), rows[0].Field(domain.FieldMember))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.xlsx"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
