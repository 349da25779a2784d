// Package pagination walks paged indicator endpoints.
//
// The API reports the total number of pages in element 0 of every response.
// The walker fetches page 1, reads the page count and then requests the
// remaining pages one after another, in order, through the client's pacer.
//
// Example usage:
//
//	walker := pagination.NewWalker(wdiClient, pagination.DefaultConfig())
//	obs, err := walker.Collect(ctx, []string{query.URL(client.DefaultBaseURL, 1)})
//
// The walker:
//   - Fetches first page to determine total pages
//   - Follows pages 2..N sequentially when FollowPages is set
//   - Stops an endpoint at its first failing page
//   - Keeps going with the next endpoint and joins the errors
//   - Returns every record it received, even alongside an error
package pagination
