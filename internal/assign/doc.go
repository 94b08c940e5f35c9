// Package assign: see policy.go for the algorithm. This file exists only
// so `go doc github.com/dreamware/fabric/internal/assign` has somewhere
// obvious to point; torua keeps package overviews in a
// sibling doc.go per package and this follows the same convention.
package assign
