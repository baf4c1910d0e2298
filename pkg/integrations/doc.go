// Package integrations provides HTTP clients for the external indexes the
// resolver and the pruning filter consult.
//
// # Overview
//
// Each index has its own subpackage:
//
//   - [rubygems]: published gem versions and their runtime dependencies
//   - [apt]: binary package indexes of Debian repositories
//
// # Shared Infrastructure
//
// The [Client] type provides shared HTTP functionality used by all clients:
//
//   - HTTP requests with retry on network failures, 429 and 5xx responses
//   - Response caching via [cache.Cache], keyed by [cache.Keyer]
//   - Default headers
//
// Errors are reported as [ErrNotFound] (404) or [ErrNetwork] (everything
// else), so callers can map them onto their own error types with errors.Is.
//
// [rubygems]: github.com/matzehuels/stackbuild/pkg/integrations/rubygems
// [apt]: github.com/matzehuels/stackbuild/pkg/integrations/apt
package integrations
