package models

const (
	PostTypeProduct          = "product"
	PostTypeProductVariation = "product_variation"
	TaxonomyProductType      = "product_type"
)

// Post is the subset of {prefix}posts needed to resolve products.
type Post struct {
	ID         uint64 `gorm:"primaryKey;column:ID" json:"id"`
	PostTitle  string `gorm:"column:post_title" json:"post_title"`
	PostType   string `gorm:"column:post_type;size:20" json:"post_type"`
	PostStatus string `gorm:"column:post_status;size:20" json:"post_status"`
}

// TermRelationship links a post to a term taxonomy.
type TermRelationship struct {
	ObjectID       uint64 `gorm:"primaryKey;column:object_id" json:"object_id"`
	TermTaxonomyID uint64 `gorm:"primaryKey;column:term_taxonomy_id" json:"term_taxonomy_id"`
}

type TermTaxonomy struct {
	TermTaxonomyID uint64 `gorm:"primaryKey;column:term_taxonomy_id" json:"term_taxonomy_id"`
	TermID         uint64 `gorm:"column:term_id" json:"term_id"`
	Taxonomy       string `gorm:"column:taxonomy;size:32" json:"taxonomy"`
}

type Term struct {
	TermID uint64 `gorm:"primaryKey;column:term_id" json:"term_id"`
	Name   string `gorm:"column:name" json:"name"`
	Slug   string `gorm:"column:slug" json:"slug"`
}
