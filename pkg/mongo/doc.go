// Package mongo connects the MongoDB client used by the document credential
// store.
package mongo
