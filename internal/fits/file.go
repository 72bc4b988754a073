package fits

// File binds a source to its catalog and hands out typed HDU views. The
// handle is single-threaded; to read HDUs in parallel, open one File per
// worker and re-run the (cheap) catalog walk in each.
type File struct {
	src     ByteSource
	catalog *Catalog
}

// Open opens the FITS file at path.
func Open(path string) (*File, error) {
	src, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return NewFile(src), nil
}

// NewFile wraps an already-open source. The File takes ownership of the
// source's cursor.
func NewFile(src ByteSource) *File {
	return &File{src: src, catalog: NewCatalog(src)}
}

// Catalog exposes the HDU walk.
func (f *File) Catalog() *Catalog { return f.catalog }

// Count walks the whole file and returns the number of readable HDUs.
func (f *File) Count() int { return f.catalog.Count() }

// Boundaries returns the byte extents of the index-th HDU.
func (f *File) Boundaries(index int) (HduBoundaries, error) {
	return f.catalog.Locate(index)
}

// Header returns the parsed header of the index-th HDU.
func (f *File) Header(index int) (*Header, error) {
	return f.catalog.Header(index)
}

// Schema derives the typed schema of the index-th HDU.
func (f *File) Schema(index int) (*Schema, error) {
	hdr, err := f.catalog.Header(index)
	if err != nil {
		return nil, err
	}
	return BuildSchema(hdr)
}

// Table returns a row decoder for the index-th HDU, which must be a binary
// table.
func (f *File) Table(index int) (*TableHdu, error) {
	bounds, err := f.catalog.Locate(index)
	if err != nil {
		return nil, err
	}
	schema, err := f.Schema(index)
	if err != nil {
		return nil, err
	}
	if schema.Type != HduBinTable || schema.Table == nil {
		return nil, ErrNotTable
	}
	return NewTableHdu(f.src, bounds, *schema.Table), nil
}

// Image returns a pixel decoder for the index-th HDU, which must be an
// image.
func (f *File) Image(index int) (*ImageHdu, error) {
	bounds, err := f.catalog.Locate(index)
	if err != nil {
		return nil, err
	}
	schema, err := f.Schema(index)
	if err != nil {
		return nil, err
	}
	if schema.Type != HduImage || schema.Image == nil {
		return nil, ErrNotImage
	}
	return NewImageHdu(f.src, bounds, *schema.Image), nil
}

// Close releases the underlying source.
func (f *File) Close() error {
	if f.src == nil {
		return nil
	}
	err := f.src.Close()
	f.src = nil
	return err
}
