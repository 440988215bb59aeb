// Package analysis runs one churn analysis over a stored file.
//
// A run validates the file, records an analysis stub, scores every row
// concurrently, persists one prediction per scored customer and finally
// stores the portfolio aggregates. Row failures are isolated and reported
// back to the caller; only schema problems and failure to create the
// analysis record abort a run.
//
// The service depends on interfaces defined in this package. Repository
// implementations live in repository/postgres/, repository/dynamo/ and
// repository/memory/.
package analysis
