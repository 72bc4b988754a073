package fits

import "fmt"

// ImageHdu decodes pixels of one image HDU.
//
// Element ordering follows the FITS convention, which is column-major:
// NAXIS1 (Axes[0]) varies fastest. Coordinates passed to ReadElement and
// ReadSlab are zero-based and in axis order [NAXIS1, NAXIS2, ...]; slabs
// are returned in the same fastest-first order the file stores them in.
type ImageHdu struct {
	src    ByteSource
	bounds HduBoundaries
	layout ImageLayout
}

// NewImageHdu binds a decoded layout to a source. Most callers obtain one
// through File.Image instead.
func NewImageHdu(src ByteSource, bounds HduBoundaries, layout ImageLayout) *ImageHdu {
	return &ImageHdu{src: src, bounds: bounds, layout: layout}
}

// Dimensions returns the axis lengths, NAXIS1 first.
func (im *ImageHdu) Dimensions() []int64 {
	out := make([]int64, len(im.layout.Axes))
	copy(out, im.layout.Axes)
	return out
}

// ElementCount returns the total pixel count.
func (im *ImageHdu) ElementCount() int64 { return im.layout.ElementCount() }

// Layout returns the pixel geometry.
func (im *ImageHdu) Layout() ImageLayout { return im.layout }

// Boundaries returns the HDU's byte extents.
func (im *ImageHdu) Boundaries() HduBoundaries { return im.bounds }

// ReadElement decodes the pixel at coord, one zero-based index per axis.
func (im *ImageHdu) ReadElement(coord []int64) (Value, error) {
	flat, err := im.flatIndex(coord)
	if err != nil {
		return Value{}, err
	}
	buf := make([]byte, im.layout.ElementBytes)
	offset := im.bounds.DataStart + flat*int64(im.layout.ElementBytes)
	if err := readExact(im.src, offset, buf); err != nil {
		return Value{}, err
	}
	return decodeValue(ColumnSpec{Form: im.layout.ElementForm, Length: 1}, buf)
}

// ReadSlab decodes the rectangular region with the given origin and extent,
// one entry per axis. Elements come back in storage order: the run along
// Axes[0] first, then successive Axes[1] positions, and so on.
func (im *ImageHdu) ReadSlab(origin, extent []int64) ([]Value, error) {
	axes := im.layout.Axes
	if len(origin) != len(axes) || len(extent) != len(axes) {
		return nil, fmt.Errorf("fits: slab rank %d/%d, image has %d axes", len(origin), len(extent), len(axes))
	}
	total := int64(1)
	for i := range axes {
		if extent[i] <= 0 {
			return nil, fmt.Errorf("fits: slab extent %d on axis %d", extent[i], i+1)
		}
		if origin[i] < 0 || origin[i]+extent[i] > axes[i] {
			return nil, fmt.Errorf("fits: slab [%d, %d) out of range on axis %d (length %d)", origin[i], origin[i]+extent[i], i+1, axes[i])
		}
		total *= extent[i]
	}
	elem := int64(im.layout.ElementBytes)
	spec := ColumnSpec{Form: im.layout.ElementForm, Length: 1}
	out := make([]Value, 0, total)
	runBuf := make([]byte, extent[0]*elem)
	cursor := make([]int64, len(axes))
	copy(cursor, origin)
	runs := total / extent[0]
	for r := int64(0); r < runs; r++ {
		flat, err := im.flatIndex(cursor)
		if err != nil {
			return nil, err
		}
		offset := im.bounds.DataStart + flat*elem
		if err := readExact(im.src, offset, runBuf); err != nil {
			return nil, err
		}
		for k := int64(0); k < extent[0]; k++ {
			v, err := decodeValue(spec, runBuf[k*elem:(k+1)*elem])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		// Step to the next run: carry across the slower axes.
		for axis := 1; axis < len(axes); axis++ {
			cursor[axis]++
			if cursor[axis] < origin[axis]+extent[axis] {
				break
			}
			cursor[axis] = origin[axis]
		}
	}
	return out, nil
}

// flatIndex folds a coordinate into the flat storage index with Axes[0]
// fastest: flat = c[0] + Axes[0]*(c[1] + Axes[1]*(c[2] + ...)).
func (im *ImageHdu) flatIndex(coord []int64) (int64, error) {
	axes := im.layout.Axes
	if len(coord) != len(axes) {
		return 0, fmt.Errorf("fits: coordinate rank %d, image has %d axes", len(coord), len(axes))
	}
	var flat int64
	for i := len(axes) - 1; i >= 0; i-- {
		if coord[i] < 0 || coord[i] >= axes[i] {
			return 0, fmt.Errorf("fits: coordinate %d out of range on axis %d (length %d)", coord[i], i+1, axes[i])
		}
		flat = flat*axes[i] + coord[i]
	}
	return flat, nil
}
