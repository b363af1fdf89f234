package domain

import "github.com/smallbiznis/catalog/pkg/db/option"

// Listing describes what product listings may search, filter and sort on.
var Listing = option.Definition{
	Fields: []option.Field{
		{Name: "company_id", Column: "company_id", Type: option.TypeInteger, Local: true},
		{Name: "name", Column: "name", Type: option.TypeString, Filterable: true, Sortable: true, Searchable: true},
		{Name: "description", Column: "description", Type: option.TypeString, Filterable: true, Sortable: true, Searchable: true},
		{Name: "price", Column: "price", Type: option.TypeInteger, Filterable: true, Sortable: true, Searchable: true},
		{Name: "created_on", Column: "created_on", Type: option.TypeDate, Sortable: true},
		{Name: "updated_on", Column: "updated_on", Type: option.TypeDate, Sortable: true},
	},
	DefaultSort: []option.Sort{
		{Column: "created_on", Desc: true},
		{Column: "uuid"},
	},
}
