// Package httputil holds the JSON response helpers shared by the API
// handlers. Handlers write responses through these helpers so every endpoint
// produces the same error envelope.
package httputil
