package fits

import (
	"fmt"

	"example.com/fitsgate/internal/fitstest"
)

// Deterministic values mirroring the canonical two-HDU survey fixture: an
// empty primary followed by a five-row catalog table.
var (
	surveyRA  = []float32{3.448297, 4.493571, 3.787308, 3.423305, 2.661925}
	surveyDec = []float64{-0.3387486324784641, 0.48188672057925, -0.29389735609648, 1.2174432709668, 0.71007771413687}
)

var surveyColumns = []fitstest.Column{
	{Name: "target", TForm: "10A"},
	{Name: "RA", TForm: "E"},
	{Name: "Dec", TForm: "D"},
	{Name: "Index", TForm: "K"},
	{Name: "RunId", TForm: "J"},
}

const (
	surveyRowBytes = 34 // 10A + E + D + K + J
	surveyRowCount = 5
)

func surveyRowBytesFor(i int) []byte {
	w := &fitstest.RowWriter{}
	w.String(fmt.Sprintf("NGC%07d", i), 10).
		Float32(surveyRA[i]).
		Float64(surveyDec[i]).
		Int64(int64(i)).
		Int32(1)
	return w.Bytes()
}

func surveyTableData() []byte {
	var data []byte
	for i := 0; i < surveyRowCount; i++ {
		data = append(data, surveyRowBytesFor(i)...)
	}
	return data
}

// surveyFile is the empty primary plus the catalog table: 2880 header +
// 2880 table header + 2880 padded data.
func surveyFile() []byte {
	out := fitstest.EmptyPrimary()
	out = append(out, fitstest.BinTableHeader(surveyRowBytes, surveyRowCount, surveyColumns)...)
	out = append(out, fitstest.PadData(surveyTableData())...)
	return out
}

// smallImageData is six float32 pixels for a 3x2 image, stored with NAXIS1
// varying fastest.
func smallImageData() []byte {
	w := &fitstest.RowWriter{}
	for _, v := range []float32{1.5, -2.25, 3, 4.5, -5, 6.125} {
		w.Float32(v)
	}
	return w.Bytes()
}

func smallImageFile() []byte {
	out := fitstest.ImageHeader(true, -32, 3, 2)
	out = append(out, fitstest.PadData(smallImageData())...)
	return out
}
