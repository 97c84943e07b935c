// Package export reads and writes CSV: evaluated panel series, raw dataset
// records, and record imports.
//
// Written cells that a spreadsheet would evaluate as a formula are prefixed
// with a single quote; the reader strips that prefix again so exported files
// re-import to the same record IDs.
package export
