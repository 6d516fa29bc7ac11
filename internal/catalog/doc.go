// Package catalog turns catalog listing pages into product URLs and product
// pages into normalized ProductRecords.
//
// Everything here is a pure function of the fetched markup: no component
// keeps state between pages, so the crawl engine may call into the package
// from any number of workers.
package catalog
