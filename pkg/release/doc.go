// Package release models the target releases packages are built for.
//
// A [Hierarchy] holds the declared releases and resolves each one's ancestor
// chain. [Naming] derives the Debian package name of a graph node for a
// given release; because the release is part of the name, asking whether an
// ancestor already publishes a node is a lookup of the same template with
// the ancestor's name substituted.
package release
