// Package shared holds helpers used across the ETL packages that belong to
// no single stage.
//
// The testutil subpackage captures slog output so tests can assert on the
// messages and attributes a stage logs:
//
//	logger, handler := testutil.NewTestLogger(t)
//	reader := files.NewReader(logger, nil)
//	...
//	testutil.AssertLogContains(t, handler, slog.LevelInfo, "raw datasets extracted")
//	testutil.AssertNoErrors(t, handler)
package shared
