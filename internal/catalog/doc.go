// Package catalog retrieves card metadata from the remote card APIs.
//
// A catalog selector names a Source:
//
//	mtg          every Scryfall printing (bulk "all_cards" file)
//	mtg:<query>  a Scryfall search, e.g. mtg:set:lea or "mtg:t:dragon r>=rare"
//	ga           every Grand Archive edition
//
// The Fetcher drives a Source page by page, concatenates pages in source
// order, drops duplicate identifiers (first occurrence wins) and applies the
// card cap. Failures are all-or-nothing: any failed page aborts the fetch
// with ErrSourceUnavailable or ErrMalformedCatalog, and no partial catalog is
// returned.
//
// Decoded catalogs are cached as <root>/<source>_cards.json and reused on
// later runs unless a refresh is requested.
package catalog
