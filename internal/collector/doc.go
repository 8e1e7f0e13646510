// Package collector implements the remote endpoints the observatory batcher
// delivers event batches to.
package collector
