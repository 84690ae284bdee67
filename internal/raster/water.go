package raster

type WaterType int16

const (
	Land  WaterType = 0
	Ocean WaterType = 1
	River WaterType = 2
)

const (
	waterTypeMask  = 0x3
	waterLevelMask = 0x3FFC
	waterLevelBits = 2

	// MaxWaterLevel is the largest level that fits the 12-bit field.
	MaxWaterLevel = waterLevelMask >> waterLevelBits
)

// WaterRasterTile packs a water type into bits 0-1 and a water level into
// bits 2-13 of every cell.
type WaterRasterTile struct {
	*ShortRasterTile
}

func NewWaterRasterTile(width, height int) *WaterRasterTile {
	return &WaterRasterTile{NewShortRasterTile(width, height)}
}

func (t *WaterRasterTile) WaterType(x, z int) WaterType {
	return WaterType(t.Short(x, z) & waterTypeMask)
}

func (t *WaterRasterTile) WaterLevel(x, z int) int {
	return int(t.Short(x, z)&waterLevelMask) >> waterLevelBits
}

// SetWaterType replaces the type bits and keeps the level.
func (t *WaterRasterTile) SetWaterType(x, z int, typ WaterType) {
	level := t.Short(x, z) & waterLevelMask
	t.SetShort(x, z, level|int16(typ)&waterTypeMask)
}

// SetWaterLevel replaces the level bits and keeps the type. Levels outside
// 0..MaxWaterLevel are truncated to 12 bits.
func (t *WaterRasterTile) SetWaterLevel(x, z int, level int) {
	typ := t.Short(x, z) & waterTypeMask
	t.SetShort(x, z, typ|int16(level<<waterLevelBits)&waterLevelMask)
}
