package domain

// Image is a catalog image reference.
type Image struct {
	ID   Scalar `json:"id" yaml:"id,omitempty"`
	Src  string `json:"src" yaml:"src"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Alt  string `json:"alt,omitempty" yaml:"alt,omitempty"`
}

// CategoryRef is the abbreviated category embedded in product payloads.
type CategoryRef struct {
	ID   Scalar `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`
}

// Product is a catalog product (or product variation) as served by the storefront API.
type Product struct {
	ID               Scalar        `json:"id" yaml:"id"`
	Name             string        `json:"name,omitempty" yaml:"name,omitempty"`
	Slug             string        `json:"slug,omitempty" yaml:"slug,omitempty"`
	Type             string        `json:"type,omitempty" yaml:"type,omitempty"`
	Status           string        `json:"status,omitempty" yaml:"status,omitempty"`
	Permalink        string        `json:"permalink,omitempty" yaml:"permalink,omitempty"`
	Price            Scalar        `json:"price" yaml:"price"`
	RegularPrice     Scalar        `json:"regular_price" yaml:"regular_price,omitempty"`
	SalePrice        Scalar        `json:"sale_price" yaml:"sale_price,omitempty"`
	OnSale           bool          `json:"on_sale,omitempty" yaml:"on_sale,omitempty"`
	StockStatus      string        `json:"stock_status,omitempty" yaml:"stock_status,omitempty"`
	Description      string        `json:"description,omitempty" yaml:"description,omitempty"`
	ShortDescription string        `json:"short_description,omitempty" yaml:"short_description,omitempty"`
	Images           []Image       `json:"images,omitempty" yaml:"images,omitempty"`
	Categories       []CategoryRef `json:"categories,omitempty" yaml:"categories,omitempty"`
	VariationID      Scalar        `json:"variation_id" yaml:"variation_id,omitempty"`
}

// Category is a product category.
type Category struct {
	ID          Scalar `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Slug        string `json:"slug,omitempty" yaml:"slug,omitempty"`
	Parent      Scalar `json:"parent" yaml:"parent,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Count       int    `json:"count" yaml:"count"`
	Image       *Image `json:"image,omitempty" yaml:"image,omitempty"`
}

// OrderLineItem is one requested line of an order.
type OrderLineItem struct {
	ProductID   Scalar `json:"product_id" yaml:"product_id"`
	Quantity    int    `json:"quantity" yaml:"quantity"`
	VariationID Scalar `json:"variation_id" yaml:"variation_id,omitempty"`
}

// OrderRequest is the body of an order creation request.
type OrderRequest struct {
	LineItems    []OrderLineItem `json:"line_items" yaml:"line_items"`
	CustomerNote string          `json:"customer_note,omitempty" yaml:"customer_note,omitempty"`
}

// OrderLine is a line of a created order as echoed by the backend.
type OrderLine struct {
	ID          Scalar `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ProductID   Scalar `json:"product_id" yaml:"product_id"`
	VariationID Scalar `json:"variation_id" yaml:"variation_id,omitempty"`
	Quantity    int    `json:"quantity" yaml:"quantity"`
	Total       Scalar `json:"total" yaml:"total"`
}

// Order is the created-order record returned by the backend.
type Order struct {
	ID           Scalar      `json:"id" yaml:"id"`
	Status       string      `json:"status" yaml:"status"`
	Currency     string      `json:"currency" yaml:"currency"`
	Total        Scalar      `json:"total" yaml:"total"`
	OrderKey     string      `json:"order_key,omitempty" yaml:"order_key,omitempty"`
	CustomerNote string      `json:"customer_note,omitempty" yaml:"customer_note,omitempty"`
	DateCreated  string      `json:"date_created,omitempty" yaml:"date_created,omitempty"`
	LineItems    []OrderLine `json:"line_items,omitempty" yaml:"line_items,omitempty"`
}

// FirstImageSrc returns the src of the first image, or empty when there is none.
func (p Product) FirstImageSrc() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}

// EffectivePrice applies the storefront price preference: sale price, then
// list price, then "0".
func (p Product) EffectivePrice() Scalar {
	return p.SalePrice.Or(p.Price).Or(Text("0"))
}
