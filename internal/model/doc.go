// Package model defines the data structures shared across the crawl engine,
// the tagger, and the report writers.
//
// The central type is PageResult, the immutable record produced for every
// fetched URL. Workers construct a PageResult, hand it to the result emitter,
// and never touch it again; downstream consumers (tagging, storage) therefore
// need no locking.
package model
