// Package reconcile pairs card-statement expenses with shop orders.
//
// An expense and an order match when their absolute amounts are equal and
// their dates are at most DayWindow days apart. Expenses left over after that
// pass are retried with FallbackWindow and the resulting matches are flagged
// as fallback. Within a pass, candidate pairs are taken greedily by smallest
// day difference, then expense date and id, then order id, so each expense
// and each order is used at most once and the result does not depend on
// input order.
//
// Pairs already recorded in the ledger are excluded up front. Unless the run
// is a dry run, new matches are written to the ledger.
package reconcile
