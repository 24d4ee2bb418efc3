// Package types defines the Draft and Settings entities, the store and
// importer interfaces, and standard error values for the xraydraft system.
package types
