package orders

import "time"

type Shipping struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"ship_phone"`
	Address       string `json:"ship_address"`
	Subdistrict   string `json:"ship_subdistrict"`
	District      string `json:"ship_district"`
	Province      string `json:"ship_province"`
	Zipcode       string `json:"ship_zipcode"`
}

type Order struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Status        Status    `json:"status"`
	TotalCents    int64     `json:"total_cents"`
	StockDeducted bool      `json:"stock_deducted"`
	TrackingNo    *string   `json:"tracking_no,omitempty"`
	Shipping      Shipping  `json:"shipping"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrderItem is the immutable line snapshot taken at checkout.
type OrderItem struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	Qty           int    `json:"qty"`
	PriceCents    int64  `json:"price_cents"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type Payment struct {
	ID         string        `json:"id"`
	OrderID    string        `json:"order_id"`
	Status     PaymentStatus `json:"status"`
	ProofRef   string        `json:"proof_ref"`
	UploadedAt time.Time     `json:"uploaded_at"`
	ReviewedAt *time.Time    `json:"reviewed_at,omitempty"`
}

type Detail struct {
	Order   Order       `json:"order"`
	Items   []OrderItem `json:"items"`
	Payment *Payment    `json:"payment"`
}

type Summary struct {
	Order
	ItemsCount    int            `json:"items_count"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
}
