package domain

import "time"

// Product is a row of the product table. The hash method of the company index
// is applied by the SQL migrations; AutoMigrate creates a plain index.
type Product struct {
	CompanyID   int64     `json:"company_id" gorm:"column:company_id;not null;index:product_company_id_hash_index"`
	UUID        string    `json:"uuid" gorm:"column:uuid;type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"column:name;type:text;not null"`
	Description string    `json:"description" gorm:"column:description;type:text;not null"`
	Price       *int64    `json:"price,omitempty" gorm:"column:price"`
	CreatedOn   time.Time `json:"created_on" gorm:"column:created_on;not null;default:CURRENT_TIMESTAMP"`
	CreatedBy   string    `json:"created_by" gorm:"column:created_by;type:text;not null"`
	UpdatedOn   time.Time `json:"updated_on" gorm:"column:updated_on;not null;default:CURRENT_TIMESTAMP"`
	UpdatedBy   string    `json:"updated_by" gorm:"column:updated_by;type:text;not null"`
}

func (Product) TableName() string { return "product" }
