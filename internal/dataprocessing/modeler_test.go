package dataprocessing

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/infrastructure"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

func TestBuildDateDimension(t *testing.T) {
	from := time.Date(2024, 1, 12, 15, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 14, 1, 0, 0, 0, time.UTC)

	dim := BuildDateDimension(DateID(from), DateID(to))
	require.Equal(t, 3, dim.NumRows())

	tests := []struct {
		column string
		want   []any
	}{
		{domain.ColID, []any{int64(20240112), int64(20240113), int64(20240114)}},
		{ColDayOfWeek, []any{int64(4), int64(5), int64(6)}},
		{ColIsWeekend, []any{int64(0), int64(1), int64(1)}},
		{ColDayOfWeekName, []any{"Friday", "Saturday", "Sunday"}},
		{ColMonthName, []any{"January", "January", "January"}},
		{ColQuarter, []any{int64(1), int64(1), int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, mustColumn(t, dim, tt.column).Values)
		})
	}
}

func TestBuildDateDimension_SingleDay(t *testing.T) {
	ts := time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)
	dim := BuildDateDimension(DateID(ts), DateID(ts))
	require.Equal(t, 1, dim.NumRows())
	assert.Equal(t, int64(20240229), mustColumn(t, dim, domain.ColID).Values[0])
}

func TestDateDimension_IDRoundTrip(t *testing.T) {
	dim := BuildDateDimension(20161225, 20170305)
	ids := mustColumn(t, dim, domain.ColID)
	dates := mustColumn(t, dim, ColDate)

	for i := 0; i < dim.NumRows(); i++ {
		id, _ := ids.Int(i)
		date, _ := dates.Time(i)
		decoded, ok := DecodeDateID(id)
		require.True(t, ok, "id %d", id)
		assert.Equal(t, date.Format(time.DateOnly), decoded.Format(time.DateOnly))
	}
}

func TestDecodeDateID(t *testing.T) {
	tests := []struct {
		id     int64
		wantOK bool
	}{
		{20240110, true},
		{20240229, true},
		{20230229, false},
		{20241301, false},
		{20240100, false},
	}
	for _, tt := range tests {
		_, ok := DecodeDateID(tt.id)
		assert.Equal(t, tt.wantOK, ok, "id %d", tt.id)
	}
}

func TestModeler_DateDimensionFromOrders(t *testing.T) {
	model := buildFixture(t, olistFixture())

	dim, ok := model.Dimensions.Get(domain.DimDate)
	require.True(t, ok)
	ids := mustColumn(t, dim, domain.ColID)
	assert.Equal(t, int64(20170102), ids.Values[0])
	assert.Equal(t, int64(20170214), ids.Values[dim.NumRows()-1])
	assert.Equal(t, 44, dim.NumRows())
}

func TestModeler_DateDimensionOmitted(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.Tables
	}{
		{
			name: "no orders",
			raw:  domain.Tables{domain.DatasetCustomers: domain.MustTable(strCol(domain.ColCustomerID, "C1"))},
		},
		{
			name: "all purchase timestamps unparsable",
			raw: domain.Tables{domain.DatasetOrders: domain.MustTable(
				strCol(domain.ColOrderID, "O1", "O2"),
				strCol(domain.ColPurchaseTimestamp, "n/a", nil),
			)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, diags, err := NewModeler(nil).Build(t.Context(), cleanFixture(t, tt.raw))
			require.NoError(t, err)
			_, ok := model.Dimensions[domain.DimDate]
			assert.False(t, ok, "date dimension must be absent, not empty")
			assert.NotEmpty(t, diags)
		})
	}
}

func TestModeler_PassThroughDimensions(t *testing.T) {
	model := buildFixture(t, olistFixture())

	tests := []struct {
		dim string
		key string
	}{
		{domain.DimCustomer, domain.ColCustomerID},
		{domain.DimProduct, domain.ColProductID},
		{domain.DimSeller, domain.ColSellerID},
		{domain.DimReview, domain.ColReviewID},
		{domain.DimOrder, domain.ColOrderID},
	}
	for _, tt := range tests {
		t.Run(tt.dim, func(t *testing.T) {
			dim, ok := model.Dimensions.Get(tt.dim)
			require.True(t, ok)
			id := mustColumn(t, dim, domain.ColID)
			natural := mustColumn(t, dim, tt.key)
			assert.Equal(t, natural.Type, id.Type)
			assert.Equal(t, natural.Values, id.Values)
		})
	}
}

func TestModeler_ProductEnglishCategory(t *testing.T) {
	tests := []struct {
		name string
		raw  func() domain.Tables
		want []any
	}{
		{
			name: "translated with per-row fallback",
			raw:  olistFixture,
			want: []any{"bed_bath_table", "health_beauty", UnknownValue},
		},
		{
			name: "no translation table",
			raw: func() domain.Tables {
				raw := olistFixture()
				delete(raw, domain.DatasetCategoryTranslation)
				return raw
			},
			want: []any{"cama_mesa_banho", "beleza_saude", UnknownValue},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := buildFixture(t, tt.raw())
			product := model.Dimensions[domain.DimProduct]
			assert.Equal(t, tt.want, mustColumn(t, product, domain.ColCategoryNameEnglish).Values)
		})
	}
}

func TestModeler_OrderDimensionProjection(t *testing.T) {
	model := buildFixture(t, exampleFixture())
	order := model.Dimensions[domain.DimOrder]

	want := append(orderProjection.Names(), domain.ColID)
	assert.Equal(t, want, order.ColumnNames())

	status := mustColumn(t, order, domain.ColOrderStatus)
	assert.Equal(t, domain.TypeString, status.Type)
	assert.Nil(t, status.Values[0], "absent source column is a typed null column")

	assert.InDelta(t, 1.0, mustColumn(t, order, domain.ColDeliveryDelayDays).Values[0], 1e-9)
	assert.Equal(t, false, mustColumn(t, order, domain.ColDeliveredOnTime).Values[0])
}

func TestModeler_MissingNaturalKey(t *testing.T) {
	raw := olistFixture()
	raw[domain.DatasetSellers] = domain.MustTable(strCol("seller_city", "franca"))

	_, _, err := NewModeler(nil).Build(t.Context(), cleanFixture(t, raw))
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeTransform, appErr.Type)
	assert.Equal(t, domain.DatasetSellers, appErr.Context[errors.ContextTable])
	assert.Equal(t, domain.ColSellerID, appErr.Context[errors.ContextColumn])
}

func TestModeler_FactTable(t *testing.T) {
	model := buildFixture(t, olistFixture())
	fact := model.Fact

	assert.Equal(t, []string{
		domain.ColOrderID, domain.ColOrderItemID, domain.ColProductID, domain.ColSellerID,
		domain.ColCustomerID, domain.ColDateID, domain.ColPrice, domain.ColFreightValue,
		domain.ColReviewScore,
	}, fact.ColumnNames())

	// O1 two items with one review, O2 one item with two reviews, O3 one item without review
	assert.Equal(t, 5, fact.NumRows())
	assert.Len(t, rowsWhere(t, fact, domain.ColOrderID, "O1"), 2)
	assert.Len(t, rowsWhere(t, fact, domain.ColOrderID, "O2"), 2, "reviews fan out")
	assert.Empty(t, rowsWhere(t, fact, domain.ColOrderID, "O4"), "null purchase timestamp is dropped")
	assert.Empty(t, rowsWhere(t, fact, domain.ColOrderID, "O9"), "item without order is dropped")

	o3 := rowsWhere(t, fact, domain.ColOrderID, "O3")
	require.Len(t, o3, 1)
	assert.Equal(t, int64(0), mustColumn(t, fact, domain.ColReviewScore).Values[o3[0]])
	assert.Equal(t, int64(20170214), mustColumn(t, fact, domain.ColDateID).Values[o3[0]])
	assert.Equal(t, "C3", mustColumn(t, fact, domain.ColCustomerID).Values[o3[0]])
	assert.Equal(t, 5.0, mustColumn(t, fact, domain.ColFreightValue).Values[o3[0]])

	scores := map[any]int{}
	for _, r := range rowsWhere(t, fact, domain.ColOrderID, "O2") {
		scores[mustColumn(t, fact, domain.ColReviewScore).Values[r]]++
	}
	assert.Equal(t, map[any]int{int64(1): 1, int64(4): 1}, scores)
}

func TestModeler_FactReferencesDateDimension(t *testing.T) {
	model := buildFixture(t, olistFixture())
	dates := keySet(model.Dimensions[domain.DimDate])
	require.NotEmpty(t, dates)

	for i, v := range mustColumn(t, model.Fact, domain.ColDateID).Values {
		_, ok := dates[v]
		assert.True(t, ok, "row %d date_id %v has no date row", i, v)
	}
}

func TestModeler_DateDimensionWithMixedOffsets(t *testing.T) {
	// O1 is the later calendar date but the earlier instant
	raw := domain.Tables{
		domain.DatasetOrders: domain.MustTable(
			strCol(domain.ColOrderID, "O1", "O2"),
			strCol(domain.ColCustomerID, "C1", "C2"),
			strCol(domain.ColPurchaseTimestamp, "2024-01-11T01:00:00+09:00", "2024-01-10T20:00:00-05:00"),
		),
		domain.DatasetOrderItems: domain.MustTable(
			strCol(domain.ColOrderID, "O1", "O2"),
			intCol(domain.ColOrderItemID, int64(1), int64(1)),
			strCol(domain.ColProductID, "P1", "P1"),
			strCol(domain.ColSellerID, "S1", "S1"),
			floatCol(domain.ColPrice, 10.0, 20.0),
			floatCol(domain.ColFreightValue, 1.0, 2.0),
		),
	}

	model := buildFixture(t, raw)
	dim := model.Dimensions[domain.DimDate]
	require.NotNil(t, dim)
	assert.Equal(t, []any{int64(20240110), int64(20240111)}, mustColumn(t, dim, domain.ColID).Values)

	dates := keySet(dim)
	factDates := mustColumn(t, model.Fact, domain.ColDateID).Values
	assert.ElementsMatch(t, []any{int64(20240111), int64(20240110)}, factDates)
	for i, v := range factDates {
		_, ok := dates[v]
		assert.True(t, ok, "row %d date_id %v has no date row", i, v)
	}

	day, ok := mustColumn(t, dim, ColDate).Time(0)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), day)
}

func TestModeler_FactNeverExceedsItems(t *testing.T) {
	raw := olistFixture()
	delete(raw, domain.DatasetReviews)

	model := buildFixture(t, raw)
	assert.LessOrEqual(t, model.Fact.NumRows(), raw[domain.DatasetOrderItems].NumRows())
	assert.False(t, model.Fact.HasColumn(domain.ColReviewScore), "review_score only exists with reviews")
}

func TestModeler_FactDropsUnknownDimensionKeys(t *testing.T) {
	raw := olistFixture()
	raw[domain.DatasetProducts] = domain.MustTable(
		strCol(domain.ColProductID, "P1", "P3"),
		strCol(domain.ColCategoryName, "cama_mesa_banho", "esporte_lazer"),
	)

	model := buildFixture(t, raw)
	assert.Empty(t, rowsWhere(t, model.Fact, domain.ColProductID, "P2"))
	assert.NotEmpty(t, rowsWhere(t, model.Fact, domain.ColProductID, "P1"))
}

func TestModeler_DroppedRowsWarningCarriesTraceID(t *testing.T) {
	raw := olistFixture()
	raw[domain.DatasetProducts] = domain.MustTable(
		strCol(domain.ColProductID, "P1", "P3"),
		strCol(domain.ColCategoryName, "cama_mesa_banho", "esporte_lazer"),
	)

	var buf bytes.Buffer
	logger, err := infrastructure.NewLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "console"}, &buf)
	require.NoError(t, err)
	ctx := infrastructure.WithTraceID(t.Context(), "run-42")

	_, _, err = NewModeler(logger).Build(ctx, cleanFixture(t, raw))
	require.NoError(t, err)

	var warning map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "fact rows dropped" {
			warning = entry
		}
	}
	require.NotNil(t, warning, "dropped rows must be logged")
	assert.Equal(t, "WARN", warning["level"])
	assert.Equal(t, "run-42", warning["trace_id"])
}

func TestModeler_EmptyFactWithoutInputs(t *testing.T) {
	for _, missing := range []string{domain.DatasetOrders, domain.DatasetOrderItems} {
		t.Run(missing, func(t *testing.T) {
			raw := olistFixture()
			delete(raw, missing)

			model, diags, err := NewModeler(slog.Default()).Build(t.Context(), cleanFixture(t, raw))
			require.NoError(t, err)
			assert.Equal(t, 0, model.Fact.NumRows())
			assert.Equal(t, 0, model.Fact.NumColumns())

			found := false
			for _, d := range diags {
				if d.Type == errors.ErrTypeMissingInput && d.Context[errors.ContextTable] == missing {
					found = true
				}
			}
			assert.True(t, found, "missing %s must be reported", missing)
		})
	}
}

func TestModeler_DoesNotMutateCleanedTables(t *testing.T) {
	cleaned := cleanFixture(t, olistFixture())
	before := cleaned[domain.DatasetProducts].NumColumns()

	_, _, err := NewModeler(nil).Build(t.Context(), cleaned)
	require.NoError(t, err)

	assert.Equal(t, before, cleaned[domain.DatasetProducts].NumColumns())
	assert.False(t, cleaned[domain.DatasetCustomers].HasColumn(domain.ColID))
}
