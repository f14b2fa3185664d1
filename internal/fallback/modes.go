// Package fallback implements the Fallback Engine (spec.md §4.G): degraded
// operating modes a platform adapter can be pushed into (by the adapter
// itself, on quota exhaustion or repeated auth failures) and a monitoring
// loop that attempts to recover back to full service. Grounded on
// original_source/src/services/platform_fallback_manager.py.
//
// spec.md §9 is explicit that the two Mode enumerations below are distinct
// vocabularies and must NOT be merged into one: GenericMode covers any
// platform, APIGatedMode only makes sense for an API-key-gated source like
// the YouTube-shape adapter.
package fallback

// GenericMode is the degraded-mode vocabulary any platform adapter can be
// placed into.
type GenericMode string

const (
	GenericAPIOnly      GenericMode = "API_ONLY"
	GenericPublicOnly   GenericMode = "PUBLIC_ONLY"
	GenericLimitedSearch GenericMode = "LIMITED_SEARCH"
	GenericReadOnly     GenericMode = "READ_ONLY"
	GenericDisabled     GenericMode = "DISABLED"
)

// APIGatedMode is the degraded-mode vocabulary specific to an API-key-gated
// source (the YouTube-shape adapter): it can still serve via unauthenticated
// or authenticated local extraction, via cache only, or by recommending a
// cross-platform substitute.
type APIGatedMode string

const (
	APIGatedPrimary            APIGatedMode = "API_PRIMARY"
	APIGatedExtractAuthenticated APIGatedMode = "YTDLP_AUTHENTICATED"
	APIGatedExtractPublic      APIGatedMode = "YTDLP_PUBLIC"
	APIGatedCacheOnly          APIGatedMode = "CACHE_ONLY"
	APIGatedCrossPlatform      APIGatedMode = "CROSS_PLATFORM"
)
