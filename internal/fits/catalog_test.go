package fits

import (
	"errors"
	"testing"

	"example.com/fitsgate/internal/fitstest"
)

func TestCatalogSurveyWalk(t *testing.T) {
	raw := surveyFile()
	cat := NewCatalog(NewBytesSource(raw))

	if n := cat.Count(); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}

	primary, err := cat.Locate(0)
	if err != nil {
		t.Fatalf("Locate(0) failed: %v", err)
	}
	if primary.Type != HduImage {
		t.Fatalf("primary type = %v, want image", primary.Type)
	}
	if primary.HeaderStart != 0 || primary.DataStart != BlockSize {
		t.Fatalf("primary header [%d, %d)", primary.HeaderStart, primary.DataStart)
	}
	if primary.DataStart != primary.DataStop {
		t.Fatalf("empty primary should have DataStart == DataStop, got [%d, %d)", primary.DataStart, primary.DataStop)
	}
	if primary.HduStop != BlockSize {
		t.Fatalf("primary HduStop = %d, want %d", primary.HduStop, BlockSize)
	}

	table, err := cat.Locate(1)
	if err != nil {
		t.Fatalf("Locate(1) failed: %v", err)
	}
	if table.Type != HduBinTable || table.Xtension != "BINTABLE" {
		t.Fatalf("table type = %v (%q)", table.Type, table.Xtension)
	}
	if table.HeaderStart != BlockSize {
		t.Fatalf("table HeaderStart = %d", table.HeaderStart)
	}
	wantData := int64(surveyRowBytes * surveyRowCount)
	if got := table.DataStop - table.DataStart; got != wantData {
		t.Fatalf("table data length = %d, want %d", got, wantData)
	}
	if got := table.HduStop - table.DataStart; got != BlockSize {
		t.Fatalf("table data area spans %d, want one block", got)
	}

	for _, b := range []HduBoundaries{primary, table} {
		if (b.DataStart-b.HeaderStart)%BlockSize != 0 || b.DataStart == b.HeaderStart {
			t.Fatalf("hdu %d: header span %d not a positive block multiple", b.Index, b.DataStart-b.HeaderStart)
		}
		if (b.HduStop-b.HeaderStart)%BlockSize != 0 || b.HduStop == b.HeaderStart {
			t.Fatalf("hdu %d: hdu span %d not a positive block multiple", b.Index, b.HduStop-b.HeaderStart)
		}
	}
}

func TestCatalogLocatePastEnd(t *testing.T) {
	cat := NewCatalog(NewBytesSource(surveyFile()))
	_, err := cat.Locate(7)
	var idxErr *IndexError
	if !errors.As(err, &idxErr) {
		t.Fatalf("error = %v, want IndexError", err)
	}
	if idxErr.Requested != 7 || idxErr.Total != 2 {
		t.Fatalf("IndexError = %+v, want requested 7 total 2", idxErr)
	}
}

func TestCatalogCountThenLocateBoundary(t *testing.T) {
	cat := NewCatalog(NewBytesSource(surveyFile()))
	n := cat.Count()
	if _, err := cat.Locate(n - 1); err != nil {
		t.Fatalf("Locate(count-1) failed: %v", err)
	}
	if _, err := cat.Locate(n); err == nil {
		t.Fatalf("Locate(count) should fail")
	}
}

func TestCatalogSeventeenByteRows(t *testing.T) {
	// 10A + E + I + L columns sum to 17 bytes; 5 rows leave 85 payload bytes
	// padded out to one block.
	cols := []fitstest.Column{
		{Name: "target", TForm: "10A"},
		{Name: "flux", TForm: "E"},
		{Name: "run", TForm: "I"},
		{Name: "ok", TForm: "L"},
	}
	var data []byte
	for i := 0; i < 5; i++ {
		w := &fitstest.RowWriter{}
		w.String("NGC", 10).Float32(1).Int16(int16(i)).Bool(i%2 == 0)
		data = append(data, w.Bytes()...)
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.BinTableHeader(17, 5, cols)...)
	raw = append(raw, fitstest.PadData(data)...)

	cat := NewCatalog(NewBytesSource(raw))
	bounds, err := cat.Locate(1)
	if err != nil {
		t.Fatalf("Locate(1) failed: %v", err)
	}
	if got := bounds.DataStop - bounds.DataStart; got != 85 {
		t.Fatalf("data length = %d, want 85", got)
	}
	if got := bounds.HduStop - bounds.DataStart; got != BlockSize {
		t.Fatalf("padded data area = %d, want %d", got, BlockSize)
	}
}

func TestCatalogUnknownXtension(t *testing.T) {
	cards := []string{
		fitstest.StrCard("XTENSION", "TABLE", "ascii table"),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 2),
		fitstest.IntCard("NAXIS1", 10),
		fitstest.IntCard("NAXIS2", 2),
		fitstest.IntCard("PCOUNT", 0),
		fitstest.IntCard("GCOUNT", 1),
		fitstest.EndCard(),
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.HeaderBytes(cards...)...)
	raw = append(raw, fitstest.PadData(make([]byte, 20))...)

	cat := NewCatalog(NewBytesSource(raw))
	if n := cat.Count(); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
	bounds, err := cat.Locate(1)
	if err != nil {
		t.Fatalf("Locate(1) failed: %v", err)
	}
	if bounds.Type != HduUnknown {
		t.Fatalf("type = %v, want unknown", bounds.Type)
	}
	if got := bounds.DataStop - bounds.DataStart; got != 20 {
		t.Fatalf("fallback data length = %d, want 20", got)
	}
	warnings := cat.Warnings()
	found := false
	for _, w := range warnings {
		if w.Kind == WarnUnknownHduType && w.Hdu == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %+v, want unknown-hdu-type for hdu 1", warnings)
	}
}

func TestCatalogPcountExtendsData(t *testing.T) {
	cards := []string{
		fitstest.StrCard("XTENSION", "BINTABLE", ""),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 2),
		fitstest.IntCard("NAXIS1", 4),
		fitstest.IntCard("NAXIS2", 2),
		fitstest.IntCard("PCOUNT", 8),
		fitstest.IntCard("GCOUNT", 1),
		fitstest.IntCard("TFIELDS", 1),
		fitstest.StrCard("TTYPE1", "x", ""),
		fitstest.StrCard("TFORM1", "J", ""),
		fitstest.EndCard(),
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.HeaderBytes(cards...)...)
	raw = append(raw, fitstest.PadData(make([]byte, 4*2+8))...)

	cat := NewCatalog(NewBytesSource(raw))
	bounds, err := cat.Locate(1)
	if err != nil {
		t.Fatalf("Locate(1) failed: %v", err)
	}
	if got := bounds.DataStop - bounds.DataStart; got != 16 {
		t.Fatalf("data length = %d, want 16 (rows + heap)", got)
	}
}

func TestCatalogTruncatedHeader(t *testing.T) {
	raw := surveyFile()
	raw = append(raw, []byte("XTENSION= 'BINTABLE'")...) // partial third header
	cat := NewCatalog(NewBytesSource(raw))
	if n := cat.Count(); n != 2 {
		t.Fatalf("Count = %d, want 2 (truncated tail dropped)", n)
	}
	warnings := cat.Warnings()
	if len(warnings) == 0 || warnings[len(warnings)-1].Kind != WarnTruncatedHdu {
		t.Fatalf("warnings = %+v, want truncated-hdu", warnings)
	}
}
