package dataprocessing

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

func strCol(name string, values ...any) *domain.Column {
	return domain.NewColumn(name, domain.TypeString, values)
}

func floatCol(name string, values ...any) *domain.Column {
	return domain.NewColumn(name, domain.TypeFloat, values)
}

func intCol(name string, values ...any) *domain.Column {
	return domain.NewColumn(name, domain.TypeInt, values)
}

// olistFixture returns raw tables shaped like the extractor output:
// timestamps still text, numbers already coerced.
//
//   - O4 has an unparsable purchase timestamp and drops out of the fact table
//   - item of O9 has no order and is dropped by the inner join
//   - O2 has two reviews and fans out
//   - O3 has no delivery date and no review
func olistFixture() domain.Tables {
	return domain.Tables{
		domain.DatasetCustomers: domain.MustTable(
			strCol(domain.ColCustomerID, "C1", "C2", "C3"),
			strCol("customer_unique_id", "U1", "U2", "U3"),
			intCol("customer_zip_code_prefix", int64(1001), nil, int64(13010)),
			strCol(domain.ColCustomerCity, "sao paulo", "rio de janeiro", "campinas"),
			strCol(domain.ColCustomerState, "SP", "RJ", "SP"),
		),
		domain.DatasetOrders: domain.MustTable(
			strCol(domain.ColOrderID, "O1", "O2", "O3", "O4"),
			strCol(domain.ColCustomerID, "C1", "C2", "C3", "C1"),
			strCol(domain.ColOrderStatus, "delivered", "delivered", "shipped", nil),
			strCol(domain.ColPurchaseTimestamp, "2017-01-02 10:00:00", "2017-01-03 09:30:00", "2017-02-14 08:00:00", "not a date"),
			strCol(domain.ColApprovedAt, "2017-01-02 11:00:00", "2017-01-03 10:00:00", "2017-02-14 09:00:00", nil),
			strCol(domain.ColDeliveredCarrierDate, "2017-01-04 08:00:00", "2017-01-05 08:00:00", "2017-02-16 08:00:00", nil),
			strCol(domain.ColDeliveredCustomerDate, "2017-01-08 10:00:00", "2017-01-20 09:30:00", nil, nil),
			strCol(domain.ColEstimatedDeliveryDate, "2017-01-10 00:00:00", "2017-01-15 00:00:00", "2017-03-01 00:00:00", "2017-02-01 00:00:00"),
		),
		domain.DatasetOrderItems: domain.MustTable(
			strCol(domain.ColOrderID, "O1", "O1", "O2", "O3", "O4", "O9"),
			intCol(domain.ColOrderItemID, int64(1), int64(2), int64(1), int64(1), int64(1), int64(1)),
			strCol(domain.ColProductID, "P1", "P2", "P1", "P3", "P1", "P1"),
			strCol(domain.ColSellerID, "S1", "S1", "S2", "S2", "S1", "S1"),
			strCol("shipping_limit_date", "2017-01-06 10:00:00", "2017-01-06 10:00:00", "2017-01-07 09:30:00", "2017-02-18 08:00:00", nil, nil),
			floatCol(domain.ColPrice, 100.0, 50.0, 200.0, 80.0, 30.0, 999.0),
			floatCol(domain.ColFreightValue, 10.0, 5.0, 20.0, nil, 3.0, 1.0),
		),
		domain.DatasetProducts: domain.MustTable(
			strCol(domain.ColProductID, "P1", "P2", "P3"),
			strCol(domain.ColCategoryName, "cama_mesa_banho", "beleza_saude", nil),
			floatCol("product_weight_g", 500.0, nil, 1500.0),
		),
		domain.DatasetSellers: domain.MustTable(
			strCol(domain.ColSellerID, "S1", "S2"),
			intCol("seller_zip_code_prefix", int64(14403), int64(13023)),
			strCol("seller_city", "franca", "campinas"),
			strCol("seller_state", "SP", "SP"),
		),
		domain.DatasetReviews: domain.MustTable(
			strCol(domain.ColReviewID, "R1", "R2", "R3"),
			strCol(domain.ColOrderID, "O1", "O2", "O2"),
			intCol(domain.ColReviewScore, int64(5), int64(1), int64(4)),
			strCol("review_comment_message", nil, "atrasou", "ok"),
			strCol("review_creation_date", "2017-01-09 00:00:00", "2017-01-21 00:00:00", "2017-01-22 00:00:00"),
			strCol("review_answer_timestamp", "2017-01-10 12:00:00", "2017-01-22 12:00:00", "2017-01-23 12:00:00"),
		),
		domain.DatasetCategoryTranslation: domain.MustTable(
			strCol(domain.ColCategoryName, "cama_mesa_banho", "beleza_saude", "cama_mesa_banho"),
			strCol(domain.ColCategoryNameEnglish, "bed_bath_table", "health_beauty", "duplicate_ignored"),
		),
	}
}

// exampleFixture is the one-order example: purchase 2024-01-10, delivered
// 2024-01-15, estimated 2024-01-14, one item priced 100.
func exampleFixture() domain.Tables {
	return domain.Tables{
		domain.DatasetOrders: domain.MustTable(
			strCol(domain.ColOrderID, "O1"),
			strCol(domain.ColPurchaseTimestamp, "2024-01-10"),
			strCol(domain.ColDeliveredCustomerDate, "2024-01-15"),
			strCol(domain.ColEstimatedDeliveryDate, "2024-01-14"),
		),
		domain.DatasetOrderItems: domain.MustTable(
			strCol(domain.ColOrderID, "O1"),
			floatCol(domain.ColPrice, 100.0),
			floatCol(domain.ColFreightValue, 10.0),
		),
	}
}

func newTestCleaner() *Cleaner {
	return NewCleaner(slog.Default(), config.DefaultPipeline())
}

func cleanFixture(t *testing.T, raw domain.Tables) domain.Tables {
	t.Helper()
	cleaned, _, err := newTestCleaner().Clean(t.Context(), raw)
	require.NoError(t, err)
	return cleaned
}

func buildFixture(t *testing.T, raw domain.Tables) *Model {
	t.Helper()
	model, _, err := NewModeler(slog.Default()).Build(t.Context(), cleanFixture(t, raw))
	require.NoError(t, err)
	return model
}

func mustColumn(t *testing.T, table *domain.Table, name string) *domain.Column {
	t.Helper()
	col, ok := table.Column(name)
	require.True(t, ok, "column %s missing", name)
	return col
}

// rowsWhere returns the indices of rows whose column equals value
func rowsWhere(t *testing.T, table *domain.Table, name string, value any) []int {
	t.Helper()
	col := mustColumn(t, table, name)
	var rows []int
	for i, v := range col.Values {
		if v == value {
			rows = append(rows, i)
		}
	}
	return rows
}
