package models

// Option is a key-value row of the host's options table.
type Option struct {
	OptionID    uint64 `gorm:"primaryKey;column:option_id" json:"option_id"`
	OptionName  string `gorm:"column:option_name;size:191;uniqueIndex" json:"option_name"`
	OptionValue string `gorm:"column:option_value;type:text" json:"option_value"`
	Autoload    string `gorm:"column:autoload;size:20;default:yes" json:"autoload"`
}
