package raster

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortRasterTileRowMajor(t *testing.T) {
	tile := NewShortRasterTile(3, 2)
	tile.SetShort(2, 1, 42)
	tile.SetShort(0, 1, -7)

	assert.Equal(t, []int16{0, 0, 0, -7, 0, 42}, tile.Data())
	assert.Equal(t, int16(42), tile.Short(2, 1))
}

func TestShortRasterTileRangeRecomputedAfterSet(t *testing.T) {
	tile, err := WrapShortRasterTile([]int16{5, -3, 9, 1}, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, Range{Min: -3, Max: 9}, tile.Range())

	tile.SetShort(0, 0, 100)
	assert.Equal(t, Range{Min: -3, Max: 100}, tile.Range())
}

func TestWrapShortRasterTileRejectsWrongLength(t *testing.T) {
	_, err := WrapShortRasterTile(make([]int16, 5), 2, 2)
	assert.Error(t, err)
}

func TestReadShortRasterTileBigEndian(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xFF, 0xFE, 0x01, 0x00, 0x80, 0x00}

	tile, err := ReadShortRasterTile(bytes.NewReader(raw), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -2, 256, -32768}, tile.Data())

	encoded, err := tile.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, encoded)
}

func TestReadShortRasterTileTruncated(t *testing.T) {
	for _, raw := range [][]byte{{}, {0x00, 0x01, 0x02}} {
		_, err := ReadShortRasterTile(bytes.NewReader(raw), 2, 2)
		require.Error(t, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	}
}

func TestWaterRasterTileFieldsAreIndependent(t *testing.T) {
	tile := NewWaterRasterTile(4, 4)

	tile.SetWaterType(1, 2, River)
	tile.SetWaterLevel(1, 2, 100)
	assert.Equal(t, River, tile.WaterType(1, 2))
	assert.Equal(t, 100, tile.WaterLevel(1, 2))

	tile.SetWaterLevel(3, 3, 100)
	tile.SetWaterType(3, 3, River)
	assert.Equal(t, River, tile.WaterType(3, 3))
	assert.Equal(t, 100, tile.WaterLevel(3, 3))

	tile.SetWaterType(3, 3, Ocean)
	assert.Equal(t, Ocean, tile.WaterType(3, 3))
	assert.Equal(t, 100, tile.WaterLevel(3, 3))

	assert.Equal(t, Land, tile.WaterType(0, 0))
	assert.Equal(t, 0, tile.WaterLevel(0, 0))
}

func TestWaterRasterTileLevelLimit(t *testing.T) {
	tile := NewWaterRasterTile(1, 1)
	tile.SetWaterType(0, 0, River)

	tile.SetWaterLevel(0, 0, MaxWaterLevel)
	assert.Equal(t, MaxWaterLevel, tile.WaterLevel(0, 0))
	assert.Equal(t, River, tile.WaterType(0, 0))

	tile.SetWaterLevel(0, 0, MaxWaterLevel+1)
	assert.Equal(t, 0, tile.WaterLevel(0, 0))
	assert.Equal(t, River, tile.WaterType(0, 0))
}
