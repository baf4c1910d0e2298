// Package apt reads binary package indexes of Debian repositories.
//
// The pruning filter asks one question per node and ancestor release: is the
// package already published there? [Client.Exists] answers it from
// dists/<release>/<component>/binary-<arch>/Packages (or Packages.gz),
// downloading each index at most once per client even under concurrent
// queries.
package apt
