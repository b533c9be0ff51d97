package catalog

import "time"

// Component is one stocked part. Type holds the category ID.
type Component struct {
	ID           string     `json:"id"`
	PartNumber   string     `json:"part_number"`
	Type         string     `json:"type"`
	Attributes   Attributes `json:"attributes"`
	Quantity     int        `json:"quantity"`
	PurchaseURL  string     `json:"purchase_url,omitempty"`
	DatasheetURL string     `json:"datasheet_url,omitempty"`
	Location     string     `json:"location,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ImagePath    string     `json:"image_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Value returns the flattened attribute text using the given schema order.
func (c Component) Value(declared []string) string {
	return EncodeValue(c.Attributes, declared)
}
