// Package raster holds dense fixed-cell tile grids.
package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// ShortRasterTile is a width×height grid of signed 16-bit cells in row-major order.
type ShortRasterTile struct {
	data   []int16
	width  int
	height int

	mu    sync.Mutex
	stats *Range
}

// Range is the lowest and highest cell value of a tile.
type Range struct {
	Min int16
	Max int16
}

func NewShortRasterTile(width, height int) *ShortRasterTile {
	return &ShortRasterTile{
		data:   make([]int16, width*height),
		width:  width,
		height: height,
	}
}

// WrapShortRasterTile uses data as the backing grid without copying it.
func WrapShortRasterTile(data []int16, width, height int) (*ShortRasterTile, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("raster: %d cells do not fill a %dx%d grid", len(data), width, height)
	}
	return &ShortRasterTile{data: data, width: width, height: height}, nil
}

func (t *ShortRasterTile) Width() int  { return t.width }
func (t *ShortRasterTile) Height() int { return t.height }

// Data exposes the backing grid. Callers must not modify it.
func (t *ShortRasterTile) Data() []int16 { return t.data }

func (t *ShortRasterTile) Short(x, z int) int16 {
	return t.data[x+z*t.width]
}

func (t *ShortRasterTile) SetShort(x, z int, v int16) {
	t.data[x+z*t.width] = v

	t.mu.Lock()
	t.stats = nil
	t.mu.Unlock()
}

// Range returns the min/max over all cells. It is computed on first use and
// kept until the next SetShort.
func (t *ShortRasterTile) Range() Range {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stats != nil {
		return *t.stats
	}

	r := Range{}
	for i, v := range t.data {
		if i == 0 || v < r.Min {
			r.Min = v
		}
		if i == 0 || v > r.Max {
			r.Max = v
		}
	}
	t.stats = &r

	return r
}

// ReadShortRasterTile decodes width*height big-endian int16 values.
// A short read is reported as io.ErrUnexpectedEOF.
func ReadShortRasterTile(r io.Reader, width, height int) (*ShortRasterTile, error) {
	data := make([]int16, width*height)
	if err := binary.Read(bufio.NewReader(r), binary.BigEndian, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("raster: decode %dx%d grid: %w", width, height, err)
	}
	return &ShortRasterTile{data: data, width: width, height: height}, nil
}

// MarshalBinary encodes the grid as big-endian int16 values, row-major.
func (t *ShortRasterTile) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2*len(t.data))
	for i, v := range t.data {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return buf, nil
}
