// Package api provides the REST client for the trading server.
//
// The dashboard consumes a small HTTP surface: symbols, account, portfolio
// history, historical candles, strategies, signals, trading control, and
// settings. The client never invents data; fallbacks to synthetic series are
// the resolver's job. The one condition surfaced as a distinct error is
// ErrCredentialsRequired (HTTP 401/402), which the UI renders as a credential
// prompt instead of demo data.
package api
