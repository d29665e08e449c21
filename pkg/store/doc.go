/*
Package store implements the aggregator's read-only data providers on top
of the ERP's Postgres database via GORM.

The store only reads: sales, sale items, products and alerts are owned and
written by their respective modules, this package just aggregates them
(sums, counts, daily grouping, top-N rankings, unresolved alerts).
*/
package store
