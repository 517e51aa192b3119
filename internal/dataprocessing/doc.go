// Package dataprocessing turns raw Olist e-commerce tables into a star schema
// and the summary tables behind the sales dashboard.
//
// # Architecture
//
// Three stages run in strict sequence, each returning new tables:
//
// 1. Cleaner: parses timestamps, imputes missing values, derives order
// calendar and delivery fields, translates product categories
// 2. Modeler: builds the date, customer, product, seller, order and review
// dimensions and the fact_sales table
// 3. Aggregator: sales by month, category, state, city and seller, plus
// review metrics with NPS
//
// # Usage
//
//	pipeline := dataprocessing.NewPipeline(logger, cfg.Pipeline,
//	    dataprocessing.WithTelemetry(tel))
//	result, err := pipeline.Run(ctx, raw)
//	if err != nil {
//	    return err
//	}
//	outputs := result.Outputs() // dim_*, fact_sales, agg_*
//
// # Data Flow
//
//	raw tables → Cleaner → cleaned tables → Modeler → dimensions + fact → Aggregator → aggregates
//
// # Error Handling
//
// Data-quality issues never abort a run. Unparsable timestamps, missing
// inputs and zero denominators are collected in Result.Diagnostics as
// PARSING, MISSING_INPUT and AGGREGATION errors. Structural problems such as
// a missing join key or calendar arithmetic on a text column abort the run
// with a TRANSFORM error naming the table and column.
//
// # Omission Rules
//
//   - No orders, or no parseable purchase timestamp: the date dimension is absent.
//   - No orders or no order_items: fact_sales has no rows and no columns, and
//     every aggregate is absent.
//   - A missing dimension omits the aggregates that need it.
package dataprocessing
