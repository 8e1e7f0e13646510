// Package store provides the persisted key-value stores the observatory
// aggregator keeps tracking flags, domain stats and domain logs in.
package store
