package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// UnknownValue replaces missing text values
const UnknownValue = "unknown"

// Derived order columns
const (
	ColPurchaseYear      = "purchase_year"
	ColPurchaseMonth     = "purchase_month"
	ColPurchaseDay       = "purchase_day"
	ColPurchaseDayOfWeek = "purchase_dayofweek"
	ColPurchaseQuarter   = "purchase_quarter"
)

const secondsPerDay = 24 * 3600

// Cleaner normalizes raw tables: timestamp parsing, imputation,
// derived order fields and category translation.
type Cleaner struct {
	logger      *slog.Logger
	dateColumns map[string][]string
	layouts     []string
}

// NewCleaner creates a cleaner for the given pipeline configuration
func NewCleaner(logger *slog.Logger, cfg config.PipelineConfig) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DateColumns == nil {
		cfg.DateColumns = config.DefaultDateColumns()
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = config.DefaultPipeline().DateLayouts
	}
	return &Cleaner{
		logger:      logger,
		dateColumns: cfg.DateColumns,
		layouts:     cfg.DateLayouts,
	}
}

// Clean returns cleaned copies of the raw tables. The input mapping is not modified.
// Unparsable timestamps are reported as recovered diagnostics; only structural
// problems are returned as an error.
func (c *Cleaner) Clean(ctx context.Context, raw domain.Tables) (domain.Tables, []*errors.AppError, error) {
	cleaned := make(domain.Tables, len(raw))
	for name, t := range raw {
		if t != nil {
			cleaned[name] = t.Clone()
		}
	}

	var diags []*errors.AppError

	parseDiags, err := c.parseDates(cleaned)
	if err != nil {
		return nil, nil, err
	}
	diags = append(diags, parseDiags...)

	for _, name := range sortedNames(cleaned) {
		imputeMissing(cleaned[name])
	}

	if orders, ok := cleaned.Get(domain.DatasetOrders); ok {
		if err := deriveOrderColumns(orders); err != nil {
			return nil, nil, err
		}
	}

	products, hasProducts := cleaned.Get(domain.DatasetProducts)
	translation, hasTranslation := cleaned.Get(domain.DatasetCategoryTranslation)
	if hasProducts && hasTranslation {
		merged, err := translateCategories(products, translation)
		if err != nil {
			return nil, nil, err
		}
		cleaned[domain.DatasetProducts] = merged
	} else if hasProducts {
		diags = append(diags, errors.NewMissingInputError(domain.DatasetCategoryTranslation, "category translation"))
	}

	c.logger.DebugContext(ctx, "tables cleaned",
		slog.Int("table_count", len(cleaned)),
		slog.Int("diagnostic_count", len(diags)))

	return cleaned, diags, nil
}

// parseDates converts the configured text columns to timestamps in place
func (c *Cleaner) parseDates(tables domain.Tables) ([]*errors.AppError, error) {
	var diags []*errors.AppError

	tableNames := make([]string, 0, len(c.dateColumns))
	for name := range c.dateColumns {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	for _, tableName := range tableNames {
		t, ok := tables.Get(tableName)
		if !ok {
			continue
		}
		for _, colName := range c.dateColumns[tableName] {
			col, ok := t.Column(colName)
			if !ok {
				continue
			}
			switch col.Type {
			case domain.TypeTime:
				continue
			case domain.TypeString:
			default:
				return nil, errors.NewTransformError(tableName, colName,
					fmt.Sprintf("declared %s, timestamp parsing needs text or time", col.Type))
			}

			parsed, failed := c.parseColumn(col)
			if err := t.AddColumn(parsed); err != nil {
				return nil, err
			}
			if failed > 0 {
				diags = append(diags, errors.NewParsingError(
					fmt.Sprintf("%s.%s: %d unparsable timestamps set to null", tableName, colName, failed), nil).
					WithContext(errors.ContextTable, tableName).
					WithContext(errors.ContextColumn, colName).
					WithContext(errors.ContextCount, failed))
			}
		}
	}

	return diags, nil
}

// parseColumn returns a time column parsed from a text column and the number of failures.
// Empty text is a missing value, not a failure.
func (c *Cleaner) parseColumn(col *domain.Column) (*domain.Column, int) {
	out := domain.NullColumn(col.Name, domain.TypeTime, col.Len())
	failed := 0
	for i := range col.Values {
		s, ok := col.String(i)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if ts, ok := c.parseTimestamp(s); ok {
			out.Values[i] = ts
		} else {
			failed++
		}
	}
	return out, failed
}

func (c *Cleaner) parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range c.layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// imputeMissing fills numeric nulls with the column median and text nulls with
// UnknownValue. Timestamp and boolean columns keep their nulls.
func imputeMissing(t *domain.Table) {
	for _, col := range t.Columns() {
		if col.NullCount() == 0 {
			continue
		}
		switch col.Type {
		case domain.TypeFloat, domain.TypeInt:
			median, ok := columnMedian(col)
			if !ok {
				continue
			}
			var fill any = median
			if col.Type == domain.TypeInt {
				fill = int64(math.Round(median))
			}
			for i, v := range col.Values {
				if v == nil {
					col.Values[i] = fill
				}
			}
		case domain.TypeString:
			for i, v := range col.Values {
				if v == nil {
					col.Values[i] = UnknownValue
				}
			}
		}
	}
}

// columnMedian returns the median of the non-null values
func columnMedian(col *domain.Column) (float64, bool) {
	values := make([]float64, 0, col.Len())
	for i := range col.Values {
		if f, ok := col.Float(i); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}

// deriveOrderColumns adds calendar and delivery-performance columns to orders.
// Missing or null source timestamps yield null derived values.
func deriveOrderColumns(orders *domain.Table) error {
	n := orders.NumRows()

	purchase, err := timeColumn(orders, domain.DatasetOrders, domain.ColPurchaseTimestamp)
	if err != nil {
		return err
	}
	delivered, err := timeColumn(orders, domain.DatasetOrders, domain.ColDeliveredCustomerDate)
	if err != nil {
		return err
	}
	estimated, err := timeColumn(orders, domain.DatasetOrders, domain.ColEstimatedDeliveryDate)
	if err != nil {
		return err
	}

	year := domain.NullColumn(ColPurchaseYear, domain.TypeInt, n)
	month := domain.NullColumn(ColPurchaseMonth, domain.TypeInt, n)
	day := domain.NullColumn(ColPurchaseDay, domain.TypeInt, n)
	dow := domain.NullColumn(ColPurchaseDayOfWeek, domain.TypeInt, n)
	quarter := domain.NullColumn(ColPurchaseQuarter, domain.TypeInt, n)
	deliveryTime := domain.NullColumn(domain.ColDeliveryTimeDays, domain.TypeFloat, n)
	deliveryDelay := domain.NullColumn(domain.ColDeliveryDelayDays, domain.TypeFloat, n)
	onTime := domain.NullColumn(domain.ColDeliveredOnTime, domain.TypeBool, n)

	for i := 0; i < n; i++ {
		p, hasPurchase := timeAt(purchase, i)
		d, hasDelivered := timeAt(delivered, i)
		e, hasEstimated := timeAt(estimated, i)

		if hasPurchase {
			year.Values[i] = int64(p.Year())
			month.Values[i] = int64(p.Month())
			day.Values[i] = int64(p.Day())
			dow.Values[i] = int64(isoWeekday(p))
			quarter.Values[i] = int64(quarterOf(p))
		}
		if hasPurchase && hasDelivered {
			deliveryTime.Values[i] = d.Sub(p).Seconds() / secondsPerDay
		}
		if hasDelivered && hasEstimated {
			delay := d.Sub(e).Seconds() / secondsPerDay
			deliveryDelay.Values[i] = delay
			onTime.Values[i] = delay <= 0
		}
	}

	for _, col := range []*domain.Column{year, month, day, dow, quarter, deliveryTime, deliveryDelay, onTime} {
		if err := orders.AddColumn(col); err != nil {
			return err
		}
	}
	return nil
}

// translateCategories left-joins products with the translation table on the
// category name. The first translation row per name wins, so product rows are
// never duplicated.
func translateCategories(products, translation *domain.Table) (*domain.Table, error) {
	key, ok := products.Column(domain.ColCategoryName)
	if !ok {
		return nil, errors.NewTransformError(domain.DatasetProducts, domain.ColCategoryName, "merge key missing")
	}
	transKey, ok := translation.Column(domain.ColCategoryName)
	if !ok {
		return nil, errors.NewTransformError(domain.DatasetCategoryTranslation, domain.ColCategoryName, "merge key missing")
	}

	lookup := make(map[string]int, transKey.Len())
	for i := range transKey.Values {
		if name, ok := transKey.String(i); ok {
			if _, seen := lookup[name]; !seen {
				lookup[name] = i
			}
		}
	}

	merged := products.Clone()
	for _, src := range translation.Columns() {
		if src.Name == domain.ColCategoryName {
			continue
		}
		col := domain.NullColumn(src.Name, src.Type, merged.NumRows())
		for i := range key.Values {
			name, ok := key.String(i)
			if !ok {
				continue
			}
			if j, found := lookup[name]; found {
				col.Values[i] = src.Values[j]
			}
		}
		if err := merged.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// timeColumn returns the named column, nil when absent, or a TransformError
// when the column is present but not temporal.
func timeColumn(t *domain.Table, table, name string) (*domain.Column, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, nil
	}
	if col.Type != domain.TypeTime {
		return nil, errors.NewTransformError(table, name,
			fmt.Sprintf("declared %s, calendar arithmetic needs time", col.Type))
	}
	return col, nil
}

func timeAt(col *domain.Column, i int) (time.Time, bool) {
	if col == nil {
		return time.Time{}, false
	}
	return col.Time(i)
}

func sortedNames(tables domain.Tables) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
