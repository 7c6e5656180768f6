package models

// Tables resolves host table names under the configured prefix.
type Tables struct {
	Prefix string
}

// NewTables returns a Tables for prefix, defaulting to "wp_".
func NewTables(prefix string) Tables {
	if prefix == "" {
		prefix = "wp_"
	}
	return Tables{Prefix: prefix}
}

func (t Tables) Orders() string            { return t.Prefix + "wc_orders" }
func (t Tables) OrderItems() string        { return t.Prefix + "woocommerce_order_items" }
func (t Tables) OrderBOMs() string         { return t.Prefix + "atum_order_boms" }
func (t Tables) ProductData() string       { return t.Prefix + "atum_product_data" }
func (t Tables) Posts() string             { return t.Prefix + "posts" }
func (t Tables) TermRelationships() string { return t.Prefix + "term_relationships" }
func (t Tables) TermTaxonomy() string      { return t.Prefix + "term_taxonomy" }
func (t Tables) Terms() string             { return t.Prefix + "terms" }
func (t Tables) ProductLookup() string     { return t.Prefix + "wc_order_product_lookup" }
func (t Tables) Options() string           { return t.Prefix + "options" }
