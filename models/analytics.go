package models

import (
	"errors"
	"time"
)

// ProductLookup is a row of the analytics lookup table
// ({prefix}wc_order_product_lookup). BOM rows carry zero revenue.
type ProductLookup struct {
	OrderItemID         uint64    `gorm:"primaryKey;autoIncrement:false;column:order_item_id" json:"order_item_id"`
	OrderID             uint64    `gorm:"column:order_id;index" json:"order_id"`
	ProductID           uint64    `gorm:"column:product_id;index" json:"product_id"`
	VariationID         uint64    `gorm:"column:variation_id" json:"variation_id"`
	CustomerID          uint64    `gorm:"column:customer_id" json:"customer_id"`
	DateCreated         time.Time `gorm:"column:date_created" json:"date_created"`
	ProductQty          float64   `gorm:"column:product_qty" json:"product_qty"`
	ProductNetRevenue   float64   `gorm:"column:product_net_revenue" json:"product_net_revenue"`
	ProductGrossRevenue float64   `gorm:"column:product_gross_revenue" json:"product_gross_revenue"`
	CouponAmount        float64   `gorm:"column:coupon_amount" json:"coupon_amount"`
	TaxAmount           float64   `gorm:"column:tax_amount" json:"tax_amount"`
	ShippingAmount      float64   `gorm:"column:shipping_amount" json:"shipping_amount"`
	ShippingTaxAmount   float64   `gorm:"column:shipping_tax_amount" json:"shipping_tax_amount"`
}

const (
	// syntheticNamespace is bit 62: above any id the host's auto-increment columns reach.
	syntheticNamespace = uint64(1) << 62
	syntheticHalfBits  = 31
	syntheticHalfMax   = uint64(1)<<syntheticHalfBits - 1
)

var ErrSyntheticKeyOverflow = errors.New("order item id or bom id does not fit in a synthetic key")

// SyntheticItemID builds the lookup-table line id for a BOM component of an order
// line. Both ids must be below 2^31; each occupies its own bit range under a
// namespace bit, so distinct pairs never share a key.
func SyntheticItemID(orderItemID, bomID uint64) (uint64, error) {
	if orderItemID > syntheticHalfMax || bomID > syntheticHalfMax {
		return 0, ErrSyntheticKeyOverflow
	}
	return syntheticNamespace | orderItemID<<syntheticHalfBits | bomID, nil
}

// SplitSyntheticItemID reverses SyntheticItemID. ok is false for ids outside the namespace.
func SplitSyntheticItemID(id uint64) (orderItemID, bomID uint64, ok bool) {
	if id&syntheticNamespace == 0 || id>>63 != 0 {
		return 0, 0, false
	}
	rest := id &^ syntheticNamespace
	return rest >> syntheticHalfBits, rest & syntheticHalfMax, true
}
