// Package idgen generates request identifiers. It lives under `internal`
// because callers should not rely on the exact layout beyond the documented
// sort-by-creation-time property; identifiers are otherwise opaque strings.
package idgen
