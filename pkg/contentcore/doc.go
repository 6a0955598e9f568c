// Package contentcore provides a provider-agnostic library for reading,
// writing and versioning localized structured content and binary assets.
//
// It exposes a single Service interface that validates queries and locales,
// caches read results, rewrites embedded asset URLs between their internal
// and public representations, and delegates storage to a pluggable content
// Provider. A reference Provider implementation backed by a generic document
// collection store lives under provider/internalstorage; collection backends
// (memory, Postgres) and asset blob backends (memory, filesystem, S3) are
// provided under subpackages.
//
// # Payload Convention
//
// Content payloads are JSON-shaped maps. Keys starting with an underscore
// are reserved for provider-private fields: they are never rewritten by the
// URL rewrite pass and are stripped from results by the reference provider.
package contentcore
