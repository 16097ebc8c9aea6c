// Package loader fetches external resources (images, shader sources) for
// component slots.
//
// A Resource is shared by URL: every component that names the same URL
// subscribes to the same Resource. Fetching and decoding run on a goroutine;
// the result is handed back through a Poster so it is applied on the engine
// loop, never concurrently with reconciliation. Each load carries a Handle
// whose Cancel drops an undelivered completion.
//
// Resources with no subscribers are evicted by Sweep, which also cancels
// their in-flight fetch.
package loader
