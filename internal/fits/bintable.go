package fits

import "fmt"

// TableHdu decodes rows of one binary-table HDU. It owns the source cursor
// while reading; the layout is immutable and shareable. Per-row decode
// failures propagate to the caller without invalidating the layout.
type TableHdu struct {
	src    ByteSource
	bounds HduBoundaries
	layout BinaryTableLayout

	rowBuf []byte
}

// NewTableHdu binds a decoded layout to a source. Most callers obtain one
// through File.Table instead.
func NewTableHdu(src ByteSource, bounds HduBoundaries, layout BinaryTableLayout) *TableHdu {
	return &TableHdu{src: src, bounds: bounds, layout: layout}
}

// RowCount returns NAXIS2.
func (t *TableHdu) RowCount() int64 { return t.layout.RowCount }

// Layout returns the row geometry.
func (t *TableHdu) Layout() BinaryTableLayout { return t.layout }

// Boundaries returns the HDU's byte extents.
func (t *TableHdu) Boundaries() HduBoundaries { return t.bounds }

// ReadRow reads and decodes the row-th row. The returned slice has one
// Value per column, in column order.
func (t *TableHdu) ReadRow(row int64) ([]Value, error) {
	if row < 0 || row >= t.layout.RowCount {
		return nil, fmt.Errorf("fits: row %d out of range (table has %d)", row, t.layout.RowCount)
	}
	if t.rowBuf == nil {
		t.rowBuf = make([]byte, t.layout.RowBytes)
	}
	offset := t.bounds.DataStart + row*int64(t.layout.RowBytes)
	if err := readExact(t.src, offset, t.rowBuf); err != nil {
		return nil, err
	}
	return t.ReadRowFromBuffer(t.rowBuf)
}

// ReadRowFromBuffer decodes one row from buf without touching the source.
// Outer layers that bulk-read row ranges feed slices through here. buf must
// hold exactly RowBytes bytes.
func (t *TableHdu) ReadRowFromBuffer(buf []byte) ([]Value, error) {
	if len(buf) != t.layout.RowBytes {
		return nil, fmt.Errorf("fits: row buffer is %d bytes, layout needs %d: %w", len(buf), t.layout.RowBytes, ErrUnexpectedEOF)
	}
	row := make([]Value, len(t.layout.Columns))
	for i, col := range t.layout.Columns {
		cell := buf[t.layout.SplitOffsets[i]:t.layout.SplitOffsets[i+1]]
		v, err := decodeValue(col, cell)
		if err != nil {
			return nil, fmt.Errorf("fits: column %d (%s): %w", i, col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

// ReadColumnRange decodes one column for rows [rowStart, rowStop), reading
// each element with a RowBytes stride from the data area.
func (t *TableHdu) ReadColumnRange(col int, rowStart, rowStop int64) ([]Value, error) {
	if col < 0 || col >= len(t.layout.Columns) {
		return nil, fmt.Errorf("fits: column %d out of range (table has %d)", col, len(t.layout.Columns))
	}
	if rowStart < 0 || rowStop < rowStart || rowStop > t.layout.RowCount {
		return nil, fmt.Errorf("fits: row range [%d, %d) out of range (table has %d)", rowStart, rowStop, t.layout.RowCount)
	}
	spec := t.layout.Columns[col]
	width := spec.ByteWidth()
	buf := make([]byte, width)
	out := make([]Value, 0, rowStop-rowStart)
	base := t.bounds.DataStart + int64(t.layout.SplitOffsets[col])
	for row := rowStart; row < rowStop; row++ {
		offset := base + row*int64(t.layout.RowBytes)
		if err := readExact(t.src, offset, buf); err != nil {
			return nil, err
		}
		v, err := decodeValue(spec, buf)
		if err != nil {
			return nil, fmt.Errorf("fits: column %d (%s) row %d: %w", col, spec.Name, row, err)
		}
		out = append(out, v)
	}
	return out, nil
}
