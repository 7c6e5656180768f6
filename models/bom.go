package models

// BOMOrderTypeShop marks BOM lines that belong to shop orders (as opposed to
// purchase or inventory orders).
const BOMOrderTypeShop = 1

// BOMProductTypes are the product types that act as BOM components.
var BOMProductTypes = []string{"product-part", "variable-product-part", "raw-material", "variable-raw-material"}

// OrderBOM is one consumed component of an order line ({prefix}atum_order_boms).
type OrderBOM struct {
	ID          uint64  `gorm:"primaryKey;column:id" json:"id"`
	OrderItemID uint64  `gorm:"column:order_item_id;index" json:"order_item_id"`
	BOMID       uint64  `gorm:"column:bom_id" json:"bom_id"`
	BOMType     string  `gorm:"column:bom_type;size:200" json:"bom_type"`
	Qty         float64 `gorm:"column:qty" json:"qty"`
	OrderType   int     `gorm:"column:order_type;default:1" json:"order_type"`
}

// ProductData is the inventory plugin's per-product row ({prefix}atum_product_data).
type ProductData struct {
	ProductID uint64 `gorm:"primaryKey;column:product_id" json:"product_id"`
	IsBOM     bool   `gorm:"column:is_bom" json:"is_bom"`
}
