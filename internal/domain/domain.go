package domain

import "time"

// Ad is a classified-ad listing row from the ads table.
type Ad struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"`
	UserEmail   string    `json:"user_email"`
	UserPhone   string    `json:"user_phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TopAd       bool      `json:"top_ad"`
	Images      []string  `json:"images"`
}

// AdContent carries the caller-supplied fields of a new ad. The repository
// assigns id, status and timestamps on insert.
type AdContent struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	UserEmail   string  `json:"user_email"`
	UserPhone   string  `json:"user_phone"`
	TopAd       bool    `json:"top_ad"`
}

// AdFilter narrows listing queries. Nil fields are not applied.
type AdFilter struct {
	TitleContains       *string    `json:"title_contains,omitempty"`
	DescriptionContains *string    `json:"description_contains,omitempty"`
	PriceLT             *float64   `json:"price_lt,omitempty"`
	PriceGT             *float64   `json:"price_gt,omitempty"`
	UpdatedAtLT         *time.Time `json:"updated_at_lt,omitempty"`
	UpdatedAtGT         *time.Time `json:"updated_at_gt,omitempty"`
}

// IsEmpty reports whether no filter field is set.
func (f AdFilter) IsEmpty() bool {
	return f.TitleContains == nil &&
		f.DescriptionContains == nil &&
		f.PriceLT == nil &&
		f.PriceGT == nil &&
		f.UpdatedAtLT == nil &&
		f.UpdatedAtGT == nil
}

// Image is a stored ad image together with its metadata.
type Image struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Bytes    []byte `json:"-"`
}
