// Package scrape turns order-history pages into orders.
//
// Pages are fetched through a Fetcher: RodFetcher drives a headless browser
// for sites that render with JavaScript, HTTPFetcher handles static pages.
// ParseTables extracts every <table> as header-keyed rows and
// OrdersFromTables maps those rows onto orders.Order using the shared
// header aliases.
//
// FindOrders searches around a date: order-history pages are often keyed by
// day, and the charge date on the statement may lag the order date. The
// exact day is tried first, then one day either side, widening until a page
// yields orders or the fallback window is exhausted.
package scrape
