package domain

// Raw dataset names as produced by the extractor
const (
	DatasetCustomers           = "customers"
	DatasetOrders              = "orders"
	DatasetOrderItems          = "order_items"
	DatasetProducts            = "products"
	DatasetSellers             = "sellers"
	DatasetReviews             = "reviews"
	DatasetCategoryTranslation = "category_translation"
)

// Dimension names of the star schema
const (
	DimDate     = "date"
	DimCustomer = "customer"
	DimProduct  = "product"
	DimSeller   = "seller"
	DimOrder    = "order"
	DimReview   = "review"
)

// FactSales is the name of the fact table
const FactSales = "fact_sales"

// Aggregate table names
const (
	AggSalesByDate     = "sales_by_date"
	AggSalesByCategory = "sales_by_category"
	AggSalesByLocation = "sales_by_location"
	AggSalesByCity     = "sales_by_city"
	AggSalesBySeller   = "sales_by_seller"
	AggReviewMetrics   = "review_metrics"
)

// Column names shared by several stages
const (
	ColID                    = "id"
	ColOrderID               = "order_id"
	ColOrderItemID           = "order_item_id"
	ColCustomerID            = "customer_id"
	ColProductID             = "product_id"
	ColSellerID              = "seller_id"
	ColReviewID              = "review_id"
	ColDateID                = "date_id"
	ColPrice                 = "price"
	ColFreightValue          = "freight_value"
	ColReviewScore           = "review_score"
	ColOrderStatus           = "order_status"
	ColPurchaseTimestamp     = "order_purchase_timestamp"
	ColApprovedAt            = "order_approved_at"
	ColDeliveredCarrierDate  = "order_delivered_carrier_date"
	ColDeliveredCustomerDate = "order_delivered_customer_date"
	ColEstimatedDeliveryDate = "order_estimated_delivery_date"
	ColDeliveryTimeDays      = "delivery_time_days"
	ColDeliveryDelayDays     = "delivery_delay_days"
	ColDeliveredOnTime       = "delivered_on_time"
	ColCategoryName          = "product_category_name"
	ColCategoryNameEnglish   = "product_category_name_english"
	ColCustomerState         = "customer_state"
	ColCustomerCity          = "customer_city"
)

// RawDatasetFiles maps each raw dataset to its file name stem in the Olist export
var RawDatasetFiles = map[string]string{
	DatasetCustomers:           "olist_customers_dataset",
	DatasetOrders:              "olist_orders_dataset",
	DatasetOrderItems:          "olist_order_items_dataset",
	DatasetProducts:            "olist_products_dataset",
	DatasetSellers:             "olist_sellers_dataset",
	DatasetReviews:             "olist_order_reviews_dataset",
	DatasetCategoryTranslation: "product_category_name_translation",
}

// OptionalDatasets may be absent from a raw export without a warning
var OptionalDatasets = map[string]bool{
	DatasetCategoryTranslation: true,
}
