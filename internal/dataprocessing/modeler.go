package dataprocessing

import (
	"context"
	"log/slog"
	"time"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Date dimension columns
const (
	ColDate          = "date"
	ColYear          = "year"
	ColMonth         = "month"
	ColDay           = "day"
	ColDayOfWeek     = "dayofweek"
	ColQuarter       = "quarter"
	ColIsWeekend     = "is_weekend"
	ColMonthName     = "month_name"
	ColDayOfWeekName = "dayofweek_name"
)

// orderProjection is the column layout of the order dimension
var orderProjection = domain.Schema{
	{Name: domain.ColOrderID, Type: domain.TypeString},
	{Name: domain.ColOrderStatus, Type: domain.TypeString},
	{Name: domain.ColPurchaseTimestamp, Type: domain.TypeTime},
	{Name: domain.ColApprovedAt, Type: domain.TypeTime},
	{Name: domain.ColDeliveredCarrierDate, Type: domain.TypeTime},
	{Name: domain.ColDeliveredCustomerDate, Type: domain.TypeTime},
	{Name: domain.ColEstimatedDeliveryDate, Type: domain.TypeTime},
	{Name: domain.ColDeliveryTimeDays, Type: domain.TypeFloat},
	{Name: domain.ColDeliveryDelayDays, Type: domain.TypeFloat},
	{Name: domain.ColDeliveredOnTime, Type: domain.TypeBool},
}

// passThrough maps each pass-through dimension to its source table and natural key
var passThrough = []struct {
	dim, source, key string
}{
	{domain.DimCustomer, domain.DatasetCustomers, domain.ColCustomerID},
	{domain.DimProduct, domain.DatasetProducts, domain.ColProductID},
	{domain.DimSeller, domain.DatasetSellers, domain.ColSellerID},
	{domain.DimReview, domain.DatasetReviews, domain.ColReviewID},
}

// Model is the star schema built from the cleaned tables
type Model struct {
	Dimensions domain.Tables
	Fact       *domain.Table
}

// Modeler builds the dimensions and the sales fact table
type Modeler struct {
	logger *slog.Logger
}

// NewModeler creates a new modeler
func NewModeler(logger *slog.Logger) *Modeler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Modeler{logger: logger}
}

// Build creates every dimension that its inputs allow and the fact table.
// Omitted dimensions and an empty fact table are reported as diagnostics.
func (m *Modeler) Build(ctx context.Context, cleaned domain.Tables) (*Model, []*errors.AppError, error) {
	var diags []*errors.AppError
	dims := make(domain.Tables)

	dateDim, err := buildDateDimensionFromOrders(cleaned)
	if err != nil {
		return nil, nil, err
	}
	if dateDim != nil {
		dims[domain.DimDate] = dateDim
	} else {
		diags = append(diags, errors.NewMissingInputError(domain.ColPurchaseTimestamp, "date dimension"))
	}

	for _, p := range passThrough {
		src, ok := cleaned.Get(p.source)
		if !ok {
			continue
		}
		dim, err := withSurrogateKey(src, p.source, p.key)
		if err != nil {
			return nil, nil, err
		}
		dims[p.dim] = dim
	}

	if product, ok := dims[domain.DimProduct]; ok {
		if err := ensureEnglishCategory(product); err != nil {
			return nil, nil, err
		}
	}

	if orders, ok := cleaned.Get(domain.DatasetOrders); ok {
		dim, err := buildOrderDimension(orders)
		if err != nil {
			return nil, nil, err
		}
		dims[domain.DimOrder] = dim
	}

	fact, factDiags, err := m.buildFact(ctx, cleaned, dims)
	if err != nil {
		return nil, nil, err
	}
	diags = append(diags, factDiags...)

	m.logger.DebugContext(ctx, "star schema built",
		slog.Int("dimension_count", len(dims)),
		slog.Int("fact_rows", fact.NumRows()))

	return &Model{Dimensions: dims, Fact: fact}, diags, nil
}

// BuildDateDimension returns one row per calendar day of the inclusive
// YYYYMMDD range, as produced by DateID. The date column holds midnight UTC.
func BuildDateDimension(fromID, toID int64) *domain.Table {
	start, _ := DecodeDateID(fromID)
	end, _ := DecodeDateID(toID)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	n := len(days)
	cols := []*domain.Column{
		domain.NullColumn(ColDate, domain.TypeTime, n),
		domain.NullColumn(ColYear, domain.TypeInt, n),
		domain.NullColumn(ColMonth, domain.TypeInt, n),
		domain.NullColumn(ColDay, domain.TypeInt, n),
		domain.NullColumn(ColDayOfWeek, domain.TypeInt, n),
		domain.NullColumn(ColQuarter, domain.TypeInt, n),
		domain.NullColumn(ColIsWeekend, domain.TypeInt, n),
		domain.NullColumn(ColMonthName, domain.TypeString, n),
		domain.NullColumn(ColDayOfWeekName, domain.TypeString, n),
		domain.NullColumn(domain.ColID, domain.TypeInt, n),
	}

	for i, d := range days {
		weekend := int64(0)
		if isWeekend(d) {
			weekend = 1
		}
		row := []any{
			d,
			int64(d.Year()),
			int64(d.Month()),
			int64(d.Day()),
			int64(isoWeekday(d)),
			int64(quarterOf(d)),
			weekend,
			d.Month().String(),
			d.Weekday().String(),
			DateID(d),
		}
		for c, v := range row {
			cols[c].Values[i] = v
		}
	}

	return domain.MustTable(cols...)
}

// buildDateDimensionFromOrders returns nil when orders or a purchase range is unavailable
func buildDateDimensionFromOrders(cleaned domain.Tables) (*domain.Table, error) {
	orders, ok := cleaned.Get(domain.DatasetOrders)
	if !ok {
		return nil, nil
	}
	purchase, err := timeColumn(orders, domain.DatasetOrders, domain.ColPurchaseTimestamp)
	if err != nil || purchase == nil {
		return nil, err
	}

	// range over calendar dates as parsed, the same keys fact_sales uses
	var minID, maxID int64
	found := false
	for i := range purchase.Values {
		ts, ok := purchase.Time(i)
		if !ok {
			continue
		}
		id := DateID(ts)
		if !found || id < minID {
			minID = id
		}
		if !found || id > maxID {
			maxID = id
		}
		found = true
	}
	if !found {
		return nil, nil
	}
	return BuildDateDimension(minID, maxID), nil
}

// withSurrogateKey clones src and appends an id column copied from key
func withSurrogateKey(src *domain.Table, table, key string) (*domain.Table, error) {
	natural, ok := src.Column(key)
	if !ok {
		return nil, errors.NewTransformError(table, key, "natural key missing")
	}
	dim := src.Clone()
	if err := dim.AddColumn(natural.Rename(domain.ColID)); err != nil {
		return nil, err
	}
	return dim, nil
}

// ensureEnglishCategory guarantees the translated category column, falling
// back to the original category name wherever no translation exists.
func ensureEnglishCategory(product *domain.Table) error {
	original, hasOriginal := product.Column(domain.ColCategoryName)
	english, hasEnglish := product.Column(domain.ColCategoryNameEnglish)

	switch {
	case !hasEnglish && hasOriginal:
		return product.AddColumn(original.Rename(domain.ColCategoryNameEnglish))
	case !hasEnglish:
		return product.AddColumn(domain.NullColumn(domain.ColCategoryNameEnglish, domain.TypeString, product.NumRows()))
	case hasOriginal:
		for i, v := range english.Values {
			if v == nil {
				english.Values[i] = original.Values[i]
			}
		}
	}
	return nil
}

func buildOrderDimension(orders *domain.Table) (*domain.Table, error) {
	if !orders.HasColumn(domain.ColOrderID) {
		return nil, errors.NewTransformError(domain.DatasetOrders, domain.ColOrderID, "natural key missing")
	}
	present := make([]string, 0, len(orderProjection))
	for _, f := range orderProjection {
		if orders.HasColumn(f.Name) {
			present = append(present, f.Name)
		}
	}
	dim, err := orders.Select(present...)
	if err != nil {
		return nil, err
	}
	for _, f := range orderProjection {
		if !dim.HasColumn(f.Name) {
			if err := dim.AddColumn(domain.NullColumn(f.Name, f.Type, dim.NumRows())); err != nil {
				return nil, err
			}
		}
	}
	if dim, err = dim.Select(orderProjection.Names()...); err != nil {
		return nil, err
	}
	return withSurrogateKey(dim, domain.DatasetOrders, domain.ColOrderID)
}

// factRow references one item row, its order row and an optional review row
type factRow struct {
	item, order int
	review      int
	dateID      int64
}

// buildFact joins order items to their orders and attaches review scores
func (m *Modeler) buildFact(ctx context.Context, cleaned domain.Tables, dims domain.Tables) (*domain.Table, []*errors.AppError, error) {
	orders, hasOrders := cleaned.Get(domain.DatasetOrders)
	items, hasItems := cleaned.Get(domain.DatasetOrderItems)
	if !hasOrders || !hasItems {
		missing := domain.DatasetOrders
		if hasOrders {
			missing = domain.DatasetOrderItems
		}
		return domain.MustTable(), []*errors.AppError{errors.NewMissingInputError(missing, domain.FactSales)}, nil
	}

	itemOrderID, ok := items.Column(domain.ColOrderID)
	if !ok {
		return nil, nil, errors.NewTransformError(domain.DatasetOrderItems, domain.ColOrderID, "join key missing")
	}
	orderID, ok := orders.Column(domain.ColOrderID)
	if !ok {
		return nil, nil, errors.NewTransformError(domain.DatasetOrders, domain.ColOrderID, "join key missing")
	}
	purchase, err := timeColumn(orders, domain.DatasetOrders, domain.ColPurchaseTimestamp)
	if err != nil {
		return nil, nil, err
	}
	if purchase == nil {
		return nil, nil, errors.NewTransformError(domain.DatasetOrders, domain.ColPurchaseTimestamp, "required for date_id")
	}
	customerID, _ := orders.Column(domain.ColCustomerID)

	ordersByID := indexRows(orderID)

	var rows []factRow
	undated := 0
	for i := range itemOrderID.Values {
		id := itemOrderID.Values[i]
		if id == nil {
			continue
		}
		for _, j := range ordersByID[id] {
			ts, ok := purchase.Time(j)
			if !ok {
				undated++
				continue
			}
			rows = append(rows, factRow{item: i, order: j, review: -1, dateID: DateID(ts)})
		}
	}

	productID, _ := items.Column(domain.ColProductID)
	sellerID, _ := items.Column(domain.ColSellerID)
	rows, orphans := m.dropOrphans(rows, dims, customerID, productID, sellerID)

	var reviewScore *domain.Column
	if reviews, ok := cleaned.Get(domain.DatasetReviews); ok {
		reviewOrderID, ok := reviews.Column(domain.ColOrderID)
		if !ok {
			return nil, nil, errors.NewTransformError(domain.DatasetReviews, domain.ColOrderID, "join key missing")
		}
		reviewScore, ok = reviews.Column(domain.ColReviewScore)
		if !ok {
			return nil, nil, errors.NewTransformError(domain.DatasetReviews, domain.ColReviewScore, "column missing")
		}
		rows = attachReviews(rows, itemOrderID, indexRows(reviewOrderID))
	}

	if undated > 0 || orphans > 0 {
		m.logger.WarnContext(ctx, "fact rows dropped",
			slog.Int("null_purchase_timestamp", undated),
			slog.Int("missing_dimension_row", orphans))
	}

	fact, err := assembleFact(rows, items, customerID, reviewScore)
	if err != nil {
		return nil, nil, err
	}
	return fact, nil, nil
}

// foreignKey checks one fact column against the keys of a built dimension
type foreignKey struct {
	keys map[any]struct{}
	col  *domain.Column
	row  func(r factRow) int
}

func (fk foreignKey) resolves(r factRow) bool {
	if fk.col == nil {
		return false
	}
	v := fk.col.Values[fk.row(r)]
	if v == nil {
		return false
	}
	_, ok := fk.keys[v]
	return ok
}

// dropOrphans keeps rows whose foreign keys exist in every dimension that was built
func (m *Modeler) dropOrphans(rows []factRow, dims domain.Tables, customerID, productID, sellerID *domain.Column) ([]factRow, int) {
	byOrder := func(r factRow) int { return r.order }
	byItem := func(r factRow) int { return r.item }

	var fks []foreignKey
	for _, ref := range []struct {
		dim string
		col *domain.Column
		row func(r factRow) int
	}{
		{domain.DimCustomer, customerID, byOrder},
		{domain.DimProduct, productID, byItem},
		{domain.DimSeller, sellerID, byItem},
	} {
		if t, ok := dims.Get(ref.dim); ok {
			fks = append(fks, foreignKey{keys: keySet(t), col: ref.col, row: ref.row})
		}
	}
	if len(fks) == 0 {
		return rows, 0
	}

	kept := make([]factRow, 0, len(rows))
	for _, r := range rows {
		ok := true
		for _, fk := range fks {
			if !fk.resolves(r) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, r)
		}
	}
	return kept, len(rows) - len(kept)
}

// attachReviews fans each row out to one row per review of its order
func attachReviews(rows []factRow, itemOrderID *domain.Column, reviewsByOrder map[any][]int) []factRow {
	out := make([]factRow, 0, len(rows))
	for _, r := range rows {
		matches := reviewsByOrder[itemOrderID.Values[r.item]]
		if len(matches) == 0 {
			out = append(out, r)
			continue
		}
		for _, k := range matches {
			fanned := r
			fanned.review = k
			out = append(out, fanned)
		}
	}
	return out
}

func assembleFact(rows []factRow, items *domain.Table, customerID, reviewScore *domain.Column) (*domain.Table, error) {
	n := len(rows)
	itemRows := make([]int, n)
	for i, r := range rows {
		itemRows[i] = r.item
	}
	picked := items.Take(itemRows)
	fromItems := func(name string, typ domain.ColumnType) *domain.Column {
		if col, ok := picked.Column(name); ok {
			return col
		}
		return domain.NullColumn(name, typ, n)
	}

	customerType := domain.TypeString
	if customerID != nil {
		customerType = customerID.Type
	}
	customer := domain.NullColumn(domain.ColCustomerID, customerType, n)
	dateID := domain.NullColumn(domain.ColDateID, domain.TypeInt, n)
	for i, r := range rows {
		if customerID != nil {
			customer.Values[i] = customerID.Values[r.order]
		}
		dateID.Values[i] = r.dateID
	}

	cols := []*domain.Column{
		fromItems(domain.ColOrderID, domain.TypeString),
		fromItems(domain.ColOrderItemID, domain.TypeInt),
		fromItems(domain.ColProductID, domain.TypeString),
		fromItems(domain.ColSellerID, domain.TypeString),
		customer,
		dateID,
		fromItems(domain.ColPrice, domain.TypeFloat),
		fromItems(domain.ColFreightValue, domain.TypeFloat),
	}

	if reviewScore != nil {
		score := domain.NullColumn(domain.ColReviewScore, domain.TypeInt, n)
		for i, r := range rows {
			score.Values[i] = int64(0)
			if r.review < 0 {
				continue
			}
			if f, ok := reviewScore.Float(r.review); ok {
				score.Values[i] = int64(f)
			}
		}
		cols = append(cols, score)
	}

	return domain.NewTable(cols...)
}

// indexRows maps every non-null value of col to the rows holding it
func indexRows(col *domain.Column) map[any][]int {
	idx := make(map[any][]int, col.Len())
	for i, v := range col.Values {
		if v != nil {
			idx[v] = append(idx[v], i)
		}
	}
	return idx
}

// keySet returns the surrogate keys of a dimension
func keySet(dim *domain.Table) map[any]struct{} {
	keys := make(map[any]struct{}, dim.NumRows())
	if id, ok := dim.Column(domain.ColID); ok {
		for _, v := range id.Values {
			if v != nil {
				keys[v] = struct{}{}
			}
		}
	}
	return keys
}
