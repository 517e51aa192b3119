package domain

// Field declares one column of a dataset
type Field struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Schema is the ordered list of declared columns of a dataset.
type Schema []Field

// TypeOf returns the declared type of a column
func (s Schema) TypeOf(name string) (ColumnType, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Type, true
		}
	}
	return TypeString, false
}

// Names returns the declared column names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// RawSchemas declares the column types of the raw Olist datasets.
// Timestamp columns arrive as text and are parsed by the cleaner.
// Columns not listed here are read as strings.
var RawSchemas = map[string]Schema{
	DatasetCustomers: {
		{Name: ColCustomerID, Type: TypeString},
		{Name: "customer_unique_id", Type: TypeString},
		{Name: "customer_zip_code_prefix", Type: TypeInt},
		{Name: ColCustomerCity, Type: TypeString},
		{Name: ColCustomerState, Type: TypeString},
	},
	DatasetOrders: {
		{Name: ColOrderID, Type: TypeString},
		{Name: ColCustomerID, Type: TypeString},
		{Name: ColOrderStatus, Type: TypeString},
		{Name: ColPurchaseTimestamp, Type: TypeString},
		{Name: ColApprovedAt, Type: TypeString},
		{Name: ColDeliveredCarrierDate, Type: TypeString},
		{Name: ColDeliveredCustomerDate, Type: TypeString},
		{Name: ColEstimatedDeliveryDate, Type: TypeString},
	},
	DatasetOrderItems: {
		{Name: ColOrderID, Type: TypeString},
		{Name: ColOrderItemID, Type: TypeInt},
		{Name: ColProductID, Type: TypeString},
		{Name: ColSellerID, Type: TypeString},
		{Name: "shipping_limit_date", Type: TypeString},
		{Name: ColPrice, Type: TypeFloat},
		{Name: ColFreightValue, Type: TypeFloat},
	},
	DatasetProducts: {
		{Name: ColProductID, Type: TypeString},
		{Name: ColCategoryName, Type: TypeString},
		{Name: "product_name_lenght", Type: TypeFloat},
		{Name: "product_description_lenght", Type: TypeFloat},
		{Name: "product_photos_qty", Type: TypeFloat},
		{Name: "product_weight_g", Type: TypeFloat},
		{Name: "product_length_cm", Type: TypeFloat},
		{Name: "product_height_cm", Type: TypeFloat},
		{Name: "product_width_cm", Type: TypeFloat},
	},
	DatasetSellers: {
		{Name: ColSellerID, Type: TypeString},
		{Name: "seller_zip_code_prefix", Type: TypeInt},
		{Name: "seller_city", Type: TypeString},
		{Name: "seller_state", Type: TypeString},
	},
	DatasetReviews: {
		{Name: ColReviewID, Type: TypeString},
		{Name: ColOrderID, Type: TypeString},
		{Name: ColReviewScore, Type: TypeInt},
		{Name: "review_comment_title", Type: TypeString},
		{Name: "review_comment_message", Type: TypeString},
		{Name: "review_creation_date", Type: TypeString},
		{Name: "review_answer_timestamp", Type: TypeString},
	},
	DatasetCategoryTranslation: {
		{Name: ColCategoryName, Type: TypeString},
		{Name: ColCategoryNameEnglish, Type: TypeString},
	},
}
