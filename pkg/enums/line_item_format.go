package enums

// LineItemFormat distinguishes physical items that hold inventory from digital ones.
type LineItemFormat string

const (
	LineItemFormatHardcopy LineItemFormat = "HARDCOPY"
	LineItemFormatDigital  LineItemFormat = "DIGITAL"
)

// HoldsInventory reports whether the format reserves physical stock at checkout.
func (f LineItemFormat) HoldsInventory() bool {
	return f == LineItemFormatHardcopy
}
