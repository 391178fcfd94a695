// Package download turns catalog cards into primary images.
//
// # Pool
//
// The Pool runs a fixed number of workers over a shared queue of tasks. For
// each card a worker:
//
//  1. Fetches the image bytes (bounded by a per-fetch timeout)
//  2. Validates and decodes them
//  3. Resizes to the exact target raster with Lanczos resampling
//  4. Encodes a JPEG and atomically writes train/<card-id>/0000.jpg
//
// Scryfall placeholder images are skipped rather than downloaded.
//
// # Basic Usage
//
//	pool := download.NewPool(client, images, layout, download.Options{
//	    Workers:      8,
//	    FetchTimeout: 30 * time.Second,
//	}, reporter)
//
//	report, err := pool.Run(ctx, pending)
//	if err != nil {
//	    // cancelled; report covers finished tasks
//	}
//	fmt.Printf("%d succeeded, %d failed\n", report.Succeeded, report.Failed())
//
// # Failure Isolation
//
// A network, decode, encode or write error fails only its own task. It is
// recorded in the report with the card identifier, the stage and the
// reason, and the remaining tasks keep running.
package download
