// Package ruby connects the resolver to the RubyGems ecosystem.
//
// # Overview
//
// [Index] implements [deps.Index] on top of the RubyGems.org API client, so
// library nodes of the closure are resolved against real published versions:
//
//	idx := ruby.NewIndex(backend, 24*time.Hour, false)
//	closure := deps.NewClosure(workspace, idx, deps.Options{})
//
// # Gemfiles
//
// Components may declare their library dependencies in a Gemfile instead of
// listing them one by one. [ParseGemfile] extracts `gem` lines with their
// requirement strings:
//
//	gem 'utilrb', '>= 3.0', '< 4'
//
// Groups, sources and platforms are ignored.
//
// [deps.Index]: github.com/matzehuels/stackbuild/pkg/deps.Index
package ruby
