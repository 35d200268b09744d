package gramedia

// Envelope is the list response shape shared by the paginated endpoints:
//
//	{"data": [...], "meta": {"total_page": N}}
//
// Meta is a pointer so a response without it can be told apart from one
// reporting zero pages.
type Envelope[T any] struct {
	Data []T   `json:"data"`
	Meta *Meta `json:"meta"`
}

// Meta carries pagination metadata.
type Meta struct {
	Page      Int `json:"page"`
	Size      Int `json:"size"`
	TotalPage Int `json:"total_page"`
	TotalData Int `json:"total_data"`
}

// CategoryNode is one node of the nested category tree returned by the
// subcategory endpoint.
type CategoryNode struct {
	Title       String         `json:"title"`
	Slug        String         `json:"slug"`
	Image       String         `json:"image"`
	Subcategory []CategoryNode `json:"subcategory"`
}

// Product is a book as listed by the products endpoint.
type Product struct {
	ProductMetaID    Int    `json:"product_meta_id"`
	Title            String `json:"title"`
	Author           String `json:"author"`
	Slug             String `json:"slug"`
	Image            String `json:"image"`
	FinalPrice       Int    `json:"final_price"`
	SlicePrice       Int    `json:"slice_price"`
	Discount         Int    `json:"discount"`
	IsOOS            Bool   `json:"is_oos"`
	SKU              String `json:"sku"`
	Format           String `json:"format"`
	AppliedPromoSlug String `json:"applied_promo_slug"`
	StoreName        String `json:"store_name"`
	ISBN             String `json:"isbn"`
	WarehouseSlug    String `json:"warehouse_slug"`
	WarehouseID      Int    `json:"warehouse_id"`
	Lang             String `json:"lang"`
}

// Store is a physical or online store location.
type Store struct {
	Name         String `json:"name"`
	Address      String `json:"address"`
	Latitude     Float  `json:"latitude"`
	Longitude    Float  `json:"longitude"`
	OpenSchedule String `json:"open_schedule"`
	Slug         String `json:"slug"`
	Type         String `json:"type"`
}

// productDetail is the subset of the storefront's product page data that
// carries the long description.
type productDetail struct {
	PageProps struct {
		ProductDetailMeta *struct {
			Description *string `json:"description"`
		} `json:"productDetailMeta"`
	} `json:"pageProps"`
}
