package dataprocessing

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Aggregate columns
const (
	ColOrderCount        = "order_count"
	ColTotalSales        = "total_sales"
	ColTotalFreight      = "total_freight"
	ColAvgOrderValue     = "avg_order_value"
	ColFreightPercentage = "freight_percentage"
	ColCategory          = "category_name"
	ColState             = "state"
	ColCity              = "city"
	ColLocation          = "location"
	ColNPS               = "nps"
)

const (
	promoterScore  = 5
	detractorScore = 3
)

// Aggregator derives the summary tables from the fact table and dimensions
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// salesGroup accumulates the measures of one group
type salesGroup struct {
	orders  map[any]struct{}
	rows    int
	sales   float64
	freight float64
}

// factView caches the fact columns every aggregate reads
type factView struct {
	rows    int
	orderID *domain.Column
	price   *domain.Column
	freight *domain.Column
}

func (f *factView) add(g *salesGroup, i int) {
	if id := f.orderID.Values[i]; id != nil {
		g.orders[id] = struct{}{}
	}
	g.rows++
	if v, ok := f.price.Float(i); ok {
		g.sales += v
	}
	if v, ok := f.freight.Float(i); ok {
		g.freight += v
	}
}

// groupRows reduces the fact rows by key. Rows without a key are skipped.
// Keys are returned in first-seen order.
func groupRows[K comparable](f *factView, key func(i int) (K, bool)) (map[K]*salesGroup, []K) {
	groups := make(map[K]*salesGroup)
	var order []K
	for i := 0; i < f.rows; i++ {
		k, ok := key(i)
		if !ok {
			continue
		}
		g, seen := groups[k]
		if !seen {
			g = &salesGroup{orders: make(map[any]struct{})}
			groups[k] = g
			order = append(order, k)
		}
		f.add(g, i)
	}
	return groups, order
}

// Aggregate computes every aggregate whose inputs are available. A fact table
// without rows yields no aggregates at all.
func (a *Aggregator) Aggregate(ctx context.Context, fact *domain.Table, dims domain.Tables) (domain.Tables, []*errors.AppError, error) {
	aggs := make(domain.Tables)
	if fact == nil || fact.NumRows() == 0 {
		return aggs, []*errors.AppError{errors.NewMissingInputError(domain.FactSales, "aggregates")}, nil
	}

	view, err := newFactView(fact)
	if err != nil {
		return nil, nil, err
	}

	var diags []*errors.AppError
	type builder struct {
		name  string
		build func(*factView, *domain.Table, domain.Tables) (domain.Tables, error)
	}
	builders := []builder{
		{domain.AggSalesByDate, a.salesByDate},
		{domain.AggSalesByCategory, a.salesByCategory},
		{domain.AggSalesByLocation, a.salesByLocation},
		{domain.AggSalesBySeller, a.salesBySeller},
		{domain.AggReviewMetrics, a.reviewMetrics},
	}

	for _, b := range builders {
		out, err := b.build(view, fact, dims)
		if err != nil {
			return nil, nil, err
		}
		if out == nil {
			a.logger.DebugContext(ctx, "aggregate omitted", slog.String("aggregate", b.name))
			continue
		}
		for name, t := range out {
			aggs[name] = t
			diags = append(diags, undefinedRatios(name, t)...)
		}
	}

	return aggs, diags, nil
}

func newFactView(fact *domain.Table) (*factView, error) {
	view := &factView{rows: fact.NumRows()}
	for _, ref := range []struct {
		name string
		col  **domain.Column
	}{
		{domain.ColOrderID, &view.orderID},
		{domain.ColPrice, &view.price},
		{domain.ColFreightValue, &view.freight},
	} {
		col, ok := fact.Column(ref.name)
		if !ok {
			return nil, errors.NewTransformError(domain.FactSales, ref.name, "column missing")
		}
		*ref.col = col
	}
	return view, nil
}

// dimRows maps dimension ids to their row. Duplicate ids resolve to their first row.
func dimRows(dimName string, dim *domain.Table) (map[any]int, error) {
	id, ok := dim.Column(domain.ColID)
	if !ok {
		return nil, errors.NewTransformError(dimName, domain.ColID, "surrogate key missing")
	}
	rows := make(map[any]int, id.Len())
	for i, v := range id.Values {
		if _, seen := rows[v]; v != nil && !seen {
			rows[v] = i
		}
	}
	return rows, nil
}

// dimLookup maps fact rows to dimension rows through a foreign key
func dimLookup(fact *domain.Table, fk, dimName string, dim *domain.Table) (func(i int) (int, bool), error) {
	col, ok := fact.Column(fk)
	if !ok {
		return nil, errors.NewTransformError(domain.FactSales, fk, "foreign key missing")
	}
	rows, err := dimRows(dimName, dim)
	if err != nil {
		return nil, err
	}
	return func(i int) (int, bool) {
		v := col.Values[i]
		if v == nil {
			return 0, false
		}
		r, ok := rows[v]
		return r, ok
	}, nil
}

func dimColumn(dim *domain.Table, dimName, name string) (*domain.Column, error) {
	col, ok := dim.Column(name)
	if !ok {
		return nil, errors.NewTransformError(dimName, name, "column missing")
	}
	return col, nil
}

type monthKey struct {
	year, month, quarter int64
}

func (a *Aggregator) salesByDate(view *factView, fact *domain.Table, dims domain.Tables) (domain.Tables, error) {
	dateDim, ok := dims.Get(domain.DimDate)
	if !ok {
		return nil, nil
	}
	dateID, ok := fact.Column(domain.ColDateID)
	if !ok {
		return nil, errors.NewTransformError(domain.FactSales, domain.ColDateID, "foreign key missing")
	}
	dateRows, err := dimRows(domain.DimDate, dateDim)
	if err != nil {
		return nil, err
	}
	var cols [3]*domain.Column
	for i, name := range []string{ColYear, ColMonth, ColQuarter} {
		if cols[i], err = dimColumn(dateDim, domain.DimDate, name); err != nil {
			return nil, err
		}
	}

	daily, days := groupRows(view, func(i int) (int64, bool) {
		return dateID.Int(i)
	})

	// Per-day order counts are summed, so an order spanning two days counts twice.
	type monthly struct {
		orders         int
		sales, freight float64
	}
	months := make(map[monthKey]*monthly)
	var keys []monthKey
	for _, day := range days {
		row, ok := dateRows[day]
		if !ok {
			continue
		}
		year, _ := cols[0].Int(row)
		month, _ := cols[1].Int(row)
		quarter, _ := cols[2].Int(row)
		k := monthKey{year, month, quarter}
		m, seen := months[k]
		if !seen {
			m = &monthly{}
			months[k] = m
			keys = append(keys, k)
		}
		g := daily[day]
		m.orders += len(g.orders)
		m.sales += g.sales
		m.freight += g.freight
	}

	slices.SortFunc(keys, func(x, y monthKey) int {
		if c := cmp.Compare(x.year, y.year); c != 0 {
			return c
		}
		return cmp.Compare(x.month, y.month)
	})

	t := newOutput(len(keys),
		domain.Field{Name: ColYear, Type: domain.TypeInt},
		domain.Field{Name: ColMonth, Type: domain.TypeInt},
		domain.Field{Name: ColQuarter, Type: domain.TypeInt},
		domain.Field{Name: ColOrderCount, Type: domain.TypeInt},
		domain.Field{Name: ColTotalSales, Type: domain.TypeFloat},
		domain.Field{Name: ColTotalFreight, Type: domain.TypeFloat},
		domain.Field{Name: ColAvgOrderValue, Type: domain.TypeFloat},
		domain.Field{Name: ColFreightPercentage, Type: domain.TypeFloat},
	)
	for i, k := range keys {
		m := months[k]
		t.set(i, k.year, k.month, k.quarter, int64(m.orders), m.sales, m.freight,
			ratio(m.sales, float64(m.orders), 1), ratio(m.freight, m.sales, 100))
	}
	return domain.Tables{domain.AggSalesByDate: t.table()}, nil
}

func (a *Aggregator) salesByCategory(view *factView, fact *domain.Table, dims domain.Tables) (domain.Tables, error) {
	product, ok := dims.Get(domain.DimProduct)
	if !ok {
		return nil, nil
	}
	lookup, err := dimLookup(fact, domain.ColProductID, domain.DimProduct, product)
	if err != nil {
		return nil, err
	}
	categoryCol := domain.ColCategoryNameEnglish
	if !product.HasColumn(categoryCol) {
		categoryCol = domain.ColCategoryName
	}
	category, err := dimColumn(product, domain.DimProduct, categoryCol)
	if err != nil {
		return nil, err
	}

	groups, keys := groupRows(view, func(i int) (string, bool) {
		row, ok := lookup(i)
		if !ok {
			return "", false
		}
		return category.String(row)
	})
	slices.Sort(keys)

	t := newOutput(len(keys), salesFields(domain.Field{Name: ColCategory, Type: domain.TypeString})...)
	for i, k := range keys {
		t.set(i, salesRow(groups[k], k)...)
	}
	return domain.Tables{domain.AggSalesByCategory: t.table()}, nil
}

type cityKey struct {
	state, city string
}

func (a *Aggregator) salesByLocation(view *factView, fact *domain.Table, dims domain.Tables) (domain.Tables, error) {
	customer, ok := dims.Get(domain.DimCustomer)
	if !ok {
		return nil, nil
	}
	lookup, err := dimLookup(fact, domain.ColCustomerID, domain.DimCustomer, customer)
	if err != nil {
		return nil, err
	}
	state, err := dimColumn(customer, domain.DimCustomer, domain.ColCustomerState)
	if err != nil {
		return nil, err
	}
	city, err := dimColumn(customer, domain.DimCustomer, domain.ColCustomerCity)
	if err != nil {
		return nil, err
	}

	byState, states := groupRows(view, func(i int) (string, bool) {
		row, ok := lookup(i)
		if !ok {
			return "", false
		}
		return state.String(row)
	})
	slices.Sort(states)

	stateTable := newOutput(len(states), salesFields(domain.Field{Name: ColState, Type: domain.TypeString})...)
	for i, k := range states {
		stateTable.set(i, salesRow(byState[k], k)...)
	}

	byCity, cities := groupRows(view, func(i int) (cityKey, bool) {
		row, ok := lookup(i)
		if !ok {
			return cityKey{}, false
		}
		s, okState := state.String(row)
		c, okCity := city.String(row)
		return cityKey{s, c}, okState && okCity
	})
	slices.SortFunc(cities, func(x, y cityKey) int {
		if c := cmp.Compare(x.state, y.state); c != 0 {
			return c
		}
		return cmp.Compare(x.city, y.city)
	})

	cityTable := newOutput(len(cities),
		domain.Field{Name: ColState, Type: domain.TypeString},
		domain.Field{Name: ColCity, Type: domain.TypeString},
		domain.Field{Name: ColOrderCount, Type: domain.TypeInt},
		domain.Field{Name: ColTotalSales, Type: domain.TypeFloat},
		domain.Field{Name: ColLocation, Type: domain.TypeString},
	)
	for i, k := range cities {
		g := byCity[k]
		cityTable.set(i, k.state, k.city, int64(len(g.orders)), g.sales, fmt.Sprintf("%s (%s)", k.city, k.state))
	}

	return domain.Tables{
		domain.AggSalesByLocation: stateTable.table(),
		domain.AggSalesByCity:     cityTable.table(),
	}, nil
}

func (a *Aggregator) salesBySeller(view *factView, fact *domain.Table, dims domain.Tables) (domain.Tables, error) {
	seller, ok := dims.Get(domain.DimSeller)
	if !ok {
		return nil, nil
	}
	lookup, err := dimLookup(fact, domain.ColSellerID, domain.DimSeller, seller)
	if err != nil {
		return nil, err
	}
	sellerID, _ := fact.Column(domain.ColSellerID)

	groups, keys := groupRows(view, func(i int) (string, bool) {
		if _, ok := lookup(i); !ok {
			return "", false
		}
		return sellerID.String(i)
	})
	slices.Sort(keys)

	t := newOutput(len(keys), salesFields(domain.Field{Name: domain.ColSellerID, Type: domain.TypeString})...)
	for i, k := range keys {
		t.set(i, salesRow(groups[k], k)...)
	}
	return domain.Tables{domain.AggSalesBySeller: t.table()}, nil
}

func (a *Aggregator) reviewMetrics(view *factView, fact *domain.Table, _ domain.Tables) (domain.Tables, error) {
	score, ok := fact.Column(domain.ColReviewScore)
	if !ok {
		return nil, nil
	}

	groups, keys := groupRows(view, func(i int) (int64, bool) {
		return score.Int(i)
	})
	slices.Sort(keys)

	total, promoters, detractors := 0, 0, 0
	for _, k := range keys {
		n := groups[k].rows
		total += n
		switch {
		case k == promoterScore:
			promoters += n
		case k <= detractorScore:
			detractors += n
		}
	}
	nps := NetPromoterScore(promoters, detractors, total)

	t := newOutput(len(keys),
		domain.Field{Name: domain.ColReviewScore, Type: domain.TypeInt},
		domain.Field{Name: ColOrderCount, Type: domain.TypeInt},
		domain.Field{Name: ColTotalSales, Type: domain.TypeFloat},
		domain.Field{Name: ColNPS, Type: domain.TypeFloat},
	)
	for i, k := range keys {
		g := groups[k]
		t.set(i, k, int64(len(g.orders)), g.sales, nps)
	}
	return domain.Tables{domain.AggReviewMetrics: t.table()}, nil
}

// NetPromoterScore returns the percentage of promoters minus the percentage
// of detractors, or nil when there is nothing to score.
func NetPromoterScore(promoters, detractors, total int) any {
	if total == 0 {
		return nil
	}
	return float64(promoters-detractors) * 100 / float64(total)
}

func salesFields(key domain.Field) []domain.Field {
	return []domain.Field{
		key,
		{Name: ColOrderCount, Type: domain.TypeInt},
		{Name: ColTotalSales, Type: domain.TypeFloat},
		{Name: ColTotalFreight, Type: domain.TypeFloat},
		{Name: ColAvgOrderValue, Type: domain.TypeFloat},
	}
}

func salesRow(g *salesGroup, key any) []any {
	orders := float64(len(g.orders))
	return []any{key, int64(len(g.orders)), g.sales, g.freight, ratio(g.sales, orders, 1)}
}

// ratio returns num/den*scale, or nil for a zero denominator
func ratio(num, den, scale float64) any {
	if den == 0 {
		return nil
	}
	return num / den * scale
}

// undefinedRatios reports null ratio cells of a computed aggregate
func undefinedRatios(name string, t *domain.Table) []*errors.AppError {
	var diags []*errors.AppError
	for _, col := range []string{ColAvgOrderValue, ColFreightPercentage, ColNPS} {
		c, ok := t.Column(col)
		if !ok {
			continue
		}
		if n := c.NullCount(); n > 0 {
			diags = append(diags, errors.NewAggregationError(name, col, n))
		}
	}
	return diags
}

// output is a fixed-size aggregate table filled row by row
type output struct {
	cols []*domain.Column
}

func newOutput(rows int, fields ...domain.Field) *output {
	o := &output{cols: make([]*domain.Column, len(fields))}
	for i, f := range fields {
		o.cols[i] = domain.NullColumn(f.Name, f.Type, rows)
	}
	return o
}

func (o *output) set(row int, values ...any) {
	for i, v := range values {
		o.cols[i].Values[row] = v
	}
}

func (o *output) table() *domain.Table {
	return domain.MustTable(o.cols...)
}
