package dataprocessing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

func aggregateFixture(t *testing.T, raw domain.Tables) (*Model, domain.Tables, []*errors.AppError) {
	t.Helper()
	model := buildFixture(t, raw)
	aggs, diags, err := NewAggregator(nil).Aggregate(t.Context(), model.Fact, model.Dimensions)
	require.NoError(t, err)
	return model, aggs, diags
}

// rowByKey returns the single row whose column equals key
func rowByKey(t *testing.T, table *domain.Table, column string, key any) int {
	t.Helper()
	rows := rowsWhere(t, table, column, key)
	require.Len(t, rows, 1, "%s=%v", column, key)
	return rows[0]
}

func TestAggregator_AllAggregates(t *testing.T) {
	_, aggs, _ := aggregateFixture(t, olistFixture())

	for _, name := range []string{
		domain.AggSalesByDate, domain.AggSalesByCategory, domain.AggSalesByLocation,
		domain.AggSalesByCity, domain.AggSalesBySeller, domain.AggReviewMetrics,
	} {
		_, ok := aggs.Get(name)
		assert.True(t, ok, "%s missing", name)
	}
}

func TestAggregator_SalesByDate(t *testing.T) {
	_, aggs, _ := aggregateFixture(t, olistFixture())
	byDate := aggs[domain.AggSalesByDate]
	require.Equal(t, 2, byDate.NumRows())

	tests := []struct {
		month          int64
		orders         int64
		sales, freight float64
		aov, freightPc float64
	}{
		// O2 fans out over two reviews, so its item counts twice in the sums.
		{month: 1, orders: 2, sales: 550, freight: 55, aov: 275, freightPc: 10},
		{month: 2, orders: 1, sales: 80, freight: 5, aov: 80, freightPc: 6.25},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("2017-%02d", tt.month), func(t *testing.T) {
			r := rowByKey(t, byDate, ColMonth, tt.month)
			assert.Equal(t, int64(2017), mustColumn(t, byDate, ColYear).Values[r])
			assert.Equal(t, int64(1), mustColumn(t, byDate, ColQuarter).Values[r])
			assert.Equal(t, tt.orders, mustColumn(t, byDate, ColOrderCount).Values[r])
			assert.InDelta(t, tt.sales, mustColumn(t, byDate, ColTotalSales).Values[r], 1e-9)
			assert.InDelta(t, tt.freight, mustColumn(t, byDate, ColTotalFreight).Values[r], 1e-9)
			assert.InDelta(t, tt.aov, mustColumn(t, byDate, ColAvgOrderValue).Values[r], 1e-9)
			assert.InDelta(t, tt.freightPc, mustColumn(t, byDate, ColFreightPercentage).Values[r], 1e-9)
		})
	}
}

func TestAggregator_SalesByCategoryUsesEnglishNames(t *testing.T) {
	_, aggs, _ := aggregateFixture(t, olistFixture())
	byCategory := aggs[domain.AggSalesByCategory]

	assert.Equal(t, []string{ColCategory, ColOrderCount, ColTotalSales, ColTotalFreight, ColAvgOrderValue}, byCategory.ColumnNames())
	assert.ElementsMatch(t, []any{"bed_bath_table", "health_beauty", UnknownValue}, mustColumn(t, byCategory, ColCategory).Values)

	r := rowByKey(t, byCategory, ColCategory, "bed_bath_table")
	assert.Equal(t, int64(2), mustColumn(t, byCategory, ColOrderCount).Values[r])
}

func TestAggregator_SalesByCategoryFallsBackToOriginalColumn(t *testing.T) {
	fact := domain.MustTable(
		strCol(domain.ColOrderID, "O1", "O2"),
		strCol(domain.ColProductID, "P1", "P2"),
		floatCol(domain.ColPrice, 10.0, 20.0),
		floatCol(domain.ColFreightValue, 1.0, 2.0),
	)
	dims := domain.Tables{
		domain.DimProduct: domain.MustTable(
			strCol(domain.ColID, "P1", "P2"),
			strCol(domain.ColCategoryName, "moveis", "moveis"),
		),
	}

	aggs, _, err := NewAggregator(nil).Aggregate(t.Context(), fact, dims)
	require.NoError(t, err)
	byCategory := aggs[domain.AggSalesByCategory]
	require.Equal(t, 1, byCategory.NumRows())
	assert.Equal(t, "moveis", mustColumn(t, byCategory, ColCategory).Values[0])
	assert.Equal(t, int64(2), mustColumn(t, byCategory, ColOrderCount).Values[0])
	assert.InDelta(t, 15.0, mustColumn(t, byCategory, ColAvgOrderValue).Values[0], 1e-9)
}

func TestAggregator_SalesByLocationAndCity(t *testing.T) {
	_, aggs, _ := aggregateFixture(t, olistFixture())

	byState := aggs[domain.AggSalesByLocation]
	sp := rowByKey(t, byState, ColState, "SP")
	assert.Equal(t, int64(2), mustColumn(t, byState, ColOrderCount).Values[sp])
	assert.InDelta(t, 230.0, mustColumn(t, byState, ColTotalSales).Values[sp], 1e-9)

	byCity := aggs[domain.AggSalesByCity]
	assert.Equal(t, []string{ColState, ColCity, ColOrderCount, ColTotalSales, ColLocation}, byCity.ColumnNames())
	r := rowByKey(t, byCity, ColCity, "rio de janeiro")
	assert.Equal(t, "rio de janeiro (RJ)", mustColumn(t, byCity, ColLocation).Values[r])
	assert.InDelta(t, 400.0, mustColumn(t, byCity, ColTotalSales).Values[r], 1e-9)
}

func TestAggregator_SalesBySeller(t *testing.T) {
	_, aggs, _ := aggregateFixture(t, olistFixture())
	bySeller := aggs[domain.AggSalesBySeller]

	assert.Equal(t, []any{"S1", "S2"}, mustColumn(t, bySeller, domain.ColSellerID).Values, "rows sorted by key")
	assert.Equal(t, []any{int64(1), int64(2)}, mustColumn(t, bySeller, ColOrderCount).Values)
}

func TestAggregator_NetPromoterScore(t *testing.T) {
	fact := domain.MustTable(
		strCol(domain.ColOrderID, "O1", "O2", "O3", "O4", "O5"),
		floatCol(domain.ColPrice, 10.0, 10.0, 10.0, 10.0, 10.0),
		floatCol(domain.ColFreightValue, 1.0, 1.0, 1.0, 1.0, 1.0),
		intCol(domain.ColReviewScore, int64(5), int64(5), int64(4), int64(3), int64(1)),
	)

	aggs, _, err := NewAggregator(nil).Aggregate(t.Context(), fact, nil)
	require.NoError(t, err)

	metrics, ok := aggs.Get(domain.AggReviewMetrics)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(3), int64(4), int64(5)}, mustColumn(t, metrics, domain.ColReviewScore).Values)
	for _, v := range mustColumn(t, metrics, ColNPS).Values {
		assert.Equal(t, 0.0, v)
	}
	assert.Len(t, aggs, 1, "aggregates needing dimensions are omitted")
}

func TestNetPromoterScore(t *testing.T) {
	tests := []struct {
		name                         string
		promoters, detractors, total int
		want                         any
	}{
		{"balanced", 2, 2, 5, 0.0},
		{"all promoters", 4, 0, 4, 100.0},
		{"all detractors", 0, 3, 3, -100.0},
		{"mixed", 3, 1, 10, 20.0},
		{"nothing to score", 0, 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NetPromoterScore(tt.promoters, tt.detractors, tt.total))
		})
	}
}

func TestAggregator_ZeroDenominators(t *testing.T) {
	fact := domain.MustTable(
		strCol(domain.ColOrderID, "O1"),
		intCol(domain.ColDateID, int64(20240110)),
		floatCol(domain.ColPrice, 0.0),
		floatCol(domain.ColFreightValue, 5.0),
	)
	dims := domain.Tables{domain.DimDate: BuildDateDimension(20240110, 20240110)}

	aggs, diags, err := NewAggregator(nil).Aggregate(t.Context(), fact, dims)
	require.NoError(t, err)

	byDate := aggs[domain.AggSalesByDate]
	assert.Nil(t, mustColumn(t, byDate, ColFreightPercentage).Values[0])
	assert.Equal(t, 0.0, mustColumn(t, byDate, ColAvgOrderValue).Values[0])

	require.Len(t, diags, 1)
	assert.Equal(t, errors.ErrTypeAggregation, diags[0].Type)
	assert.Equal(t, ColFreightPercentage, diags[0].Context[errors.ContextColumn])
}

func TestAggregator_EmptyFactOmitsEverything(t *testing.T) {
	model := buildFixture(t, olistFixture())

	aggs, diags, err := NewAggregator(nil).Aggregate(t.Context(), domain.MustTable(), model.Dimensions)
	require.NoError(t, err)
	assert.Empty(t, aggs)
	require.Len(t, diags, 1)
	assert.Equal(t, errors.ErrTypeMissingInput, diags[0].Type)
}

func TestAggregator_MissingFactColumn(t *testing.T) {
	fact := domain.MustTable(strCol(domain.ColOrderID, "O1"))
	_, _, err := NewAggregator(nil).Aggregate(t.Context(), fact, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeTransform))
}

// TestAggregator_GroupSumsReconstruct recomputes every total_sales from the
// fact rows and the dimension attributes the aggregate groups by.
func TestAggregator_GroupSumsReconstruct(t *testing.T) {
	model, aggs, _ := aggregateFixture(t, olistFixture())
	fact := model.Fact
	price := mustColumn(t, fact, domain.ColPrice)

	attr := func(dim, fk, column string) func(i int) any {
		table := model.Dimensions[dim]
		ids := mustColumn(t, table, domain.ColID)
		values := mustColumn(t, table, column)
		byID := map[any]any{}
		for r, id := range ids.Values {
			byID[id] = values.Values[r]
		}
		fkCol := mustColumn(t, fact, fk)
		return func(i int) any { return byID[fkCol.Values[i]] }
	}

	tests := []struct {
		agg      string
		keyCols  []string
		factKeys []func(i int) any
	}{
		{
			agg:      domain.AggSalesByDate,
			keyCols:  []string{ColYear, ColMonth},
			factKeys: []func(int) any{attr(domain.DimDate, domain.ColDateID, ColYear), attr(domain.DimDate, domain.ColDateID, ColMonth)},
		},
		{
			agg:      domain.AggSalesByCategory,
			keyCols:  []string{ColCategory},
			factKeys: []func(int) any{attr(domain.DimProduct, domain.ColProductID, domain.ColCategoryNameEnglish)},
		},
		{
			agg:      domain.AggSalesByLocation,
			keyCols:  []string{ColState},
			factKeys: []func(int) any{attr(domain.DimCustomer, domain.ColCustomerID, domain.ColCustomerState)},
		},
		{
			agg:     domain.AggSalesByCity,
			keyCols: []string{ColState, ColCity},
			factKeys: []func(int) any{
				attr(domain.DimCustomer, domain.ColCustomerID, domain.ColCustomerState),
				attr(domain.DimCustomer, domain.ColCustomerID, domain.ColCustomerCity),
			},
		},
		{
			agg:      domain.AggSalesBySeller,
			keyCols:  []string{domain.ColSellerID},
			factKeys: []func(int) any{func(i int) any { return mustColumn(t, fact, domain.ColSellerID).Values[i] }},
		},
		{
			agg:      domain.AggReviewMetrics,
			keyCols:  []string{domain.ColReviewScore},
			factKeys: []func(int) any{func(i int) any { return mustColumn(t, fact, domain.ColReviewScore).Values[i] }},
		},
	}

	for _, tt := range tests {
		t.Run(tt.agg, func(t *testing.T) {
			want := map[string]float64{}
			for i := 0; i < fact.NumRows(); i++ {
				key := ""
				for _, k := range tt.factKeys {
					key += fmt.Sprint(k(i)) + "|"
				}
				p, _ := price.Float(i)
				want[key] += p
			}

			table := aggs[tt.agg]
			got := map[string]float64{}
			total := mustColumn(t, table, ColTotalSales)
			for r := 0; r < table.NumRows(); r++ {
				key := ""
				for _, c := range tt.keyCols {
					key += fmt.Sprint(mustColumn(t, table, c).Values[r]) + "|"
				}
				got[key], _ = total.Float(r)
			}

			require.Equal(t, len(want), len(got))
			for key, sum := range want {
				assert.InDelta(t, sum, got[key], 1e-9, "group %s", key)
			}
		})
	}
}
