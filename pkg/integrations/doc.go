// Package integrations provides HTTP clients for the upstream services
// shelfmark talks to.
//
// # Overview
//
// Each upstream has its own subpackage:
//
//   - [gramedia]: the bookstore catalog API (categories, products, stores)
//   - [hfhub]: the shared dataset repository used as the second cache tier
//
// # Client Pattern
//
// Subpackage clients embed the shared [Client], which handles:
//   - Default and per-request headers (User-Agent, bearer credentials)
//   - Status classification into [ErrNotFound], [ErrUnauthorized], [ErrNetwork]
//   - Retry with backoff on network errors, 5xx and 429 responses
//   - JSON decoding, with decode failures reported as INVALID_RESPONSE
//
// All errors wrap the sentinels, so callers can test with errors.Is:
//
//	if errors.Is(err, integrations.ErrNotFound) {
//	    // fall through to the next tier
//	}
//
// [gramedia]: github.com/matzehuels/shelfmark/pkg/integrations/gramedia
// [hfhub]: github.com/matzehuels/shelfmark/pkg/integrations/hfhub
package integrations
