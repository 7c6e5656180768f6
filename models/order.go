package models

import "time"

const (
	OrderTypeShopOrder = "shop_order"
	OrderItemTypeLine  = "line_item"
)

// Order is a row of the host's orders table ({prefix}wc_orders).
type Order struct {
	ID             uint64     `gorm:"primaryKey;column:id" json:"id"`
	Type           string     `gorm:"column:type;size:20" json:"type"`
	Status         string     `gorm:"column:status;size:20" json:"status"`
	CustomerID     uint64     `gorm:"column:customer_id" json:"customer_id"`
	DateCreatedGMT *time.Time `gorm:"column:date_created_gmt" json:"date_created_gmt"`
}

// OrderItem is a row of {prefix}woocommerce_order_items.
type OrderItem struct {
	OrderItemID   uint64 `gorm:"primaryKey;column:order_item_id" json:"order_item_id"`
	OrderItemName string `gorm:"column:order_item_name" json:"order_item_name"`
	OrderItemType string `gorm:"column:order_item_type;size:200" json:"order_item_type"`
	OrderID       uint64 `gorm:"column:order_id;index" json:"order_id"`
}
