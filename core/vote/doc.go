// Package vote maintains the running mean score of recipes.
//
// A user has at most one vote per recipe. The first vote adds to the mean
// and increments the vote count; later votes by the same user replace the
// previous score and leave the count unchanged:
//
//	create: mean' = (mean*n + s) / (n+1), n' = n+1
//	update: mean' = (mean*n - prev + s) / n, n' = n
//
// Read-modify-write of (mean, n) is serialised per recipe by the Aggregator.
// Votes on different recipes never wait on each other.
package vote
