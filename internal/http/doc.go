// Package http provides the HTTP client used to talk to card catalog APIs
// and image CDNs.
//
// The Client in this package handles:
//   - User-Agent headers (public card APIs reject anonymous clients)
//   - Rate limiting shared by every worker
//   - Retried catalog requests with exponential backoff
//   - Size-capped image downloads with a per-fetch timeout
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Fetch and decode a catalog page
//	var page dto.ScryfallList
//	err := client.GetJSON(ctx, "https://api.scryfall.com/cards/search?q=set:lea", &page)
//
//	// Stream a large bulk file
//	body, err := client.Open(ctx, bulkURL)
//	defer body.Close()
//
//	// Download an image
//	data, err := client.DownloadBytes(ctx, imageURL, 30*time.Second)
//
// # Errors
//
// Non-2xx responses are reported as *StatusError; callers can inspect the
// code with errors.As.
package http
