package fitstest

import "fmt"

// The deterministic survey fixture: an empty primary, a five-row catalog
// table, a second smaller table, and a float32 image extension. It mirrors
// the classic astropy-generated test file this project's tests standardize
// on.
const (
	SurveyFileName = "survey.fits"

	SurveyRowCount = 5
	// SurveyRowBytes is the catalog table row width: 10A + E + D + K + J.
	SurveyRowBytes = 34
	// ObservationRowBytes is the second table's row width: 20A + J + L.
	ObservationRowBytes = 25

	ImageWidth  = 3
	ImageHeight = 2
)

var (
	SurveyRA  = []float32{3.448297, 4.493571, 3.787308, 3.423305, 2.661925}
	SurveyDec = []float64{-0.3387486324784641, 0.48188672057925, -0.29389735609648, 1.2174432709668, 0.71007771413687}

	// ImagePixels is stored with NAXIS1 varying fastest.
	ImagePixels = []float32{1.5, -2.25, 3, 4.5, -5, 6.125}
)

// TargetName returns the catalog identifier for row i.
func TargetName(i int) string {
	return fmt.Sprintf("NGC%07d", i)
}

// BuildSurvey constructs the full four-HDU sample file.
func BuildSurvey() []byte {
	out := EmptyPrimary(
		StrCard("OBSERVER", "Toto l'asticot", ""),
		CommentCard("COMMENT", "Deterministic sample for fitsgate tests."),
	)
	out = append(out, buildCatalogTable()...)
	out = append(out, buildObservationTable()...)
	out = append(out, buildImageExtension()...)
	return out
}

func buildCatalogTable() []byte {
	cols := []Column{
		{Name: "target", TForm: "10A"},
		{Name: "RA", TForm: "E"},
		{Name: "Dec", TForm: "D"},
		{Name: "Index", TForm: "K"},
		{Name: "RunId", TForm: "J"},
	}
	var data []byte
	for i := 0; i < SurveyRowCount; i++ {
		w := &RowWriter{}
		w.String(TargetName(i), 10).
			Float32(SurveyRA[i]).
			Float64(SurveyDec[i]).
			Int64(int64(i)).
			Int32(1)
		data = append(data, w.Bytes()...)
	}
	out := BinTableHeader(SurveyRowBytes, SurveyRowCount, cols)
	return append(out, PadData(data)...)
}

func buildObservationTable() []byte {
	cols := []Column{
		{Name: "target", TForm: "20A"},
		{Name: "Index", TForm: "1J"},
		{Name: "Discovery", TForm: "L"},
	}
	var data []byte
	for i := 0; i < SurveyRowCount; i++ {
		w := &RowWriter{}
		w.String(TargetName(i), 20).
			Int32(int32(i * 7)).
			Bool(i%2 == 0)
		data = append(data, w.Bytes()...)
	}
	out := BinTableHeader(ObservationRowBytes, SurveyRowCount, cols)
	return append(out, PadData(data)...)
}

func buildImageExtension() []byte {
	w := &RowWriter{}
	for _, v := range ImagePixels {
		w.Float32(v)
	}
	out := ImageHeader(false, -32, ImageWidth, ImageHeight)
	return append(out, PadData(w.Bytes())...)
}
