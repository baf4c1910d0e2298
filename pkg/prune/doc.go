// Package prune removes packages from a build graph when an ancestor release
// already publishes them.
//
// For each node the [Pruner] walks the target's ancestor chain closest
// first and asks a [PackageIndex] whether the ancestor's package of the
// same name exists. Answers go through a [MembershipCache], which is the
// only structure shared between concurrent lookups.
package prune
