// Package brew decides whether a machine can brew a recipe.
//
// The Validator runs every readiness check against an inventory snapshot and
// accumulates all failures in a Report, in a fixed order:
//   - machine connectivity
//   - mug readiness
//   - tea availability and quantity
//   - each recipe ingredient, in recipe order
//   - water quantity (portion plus brewing overhead)
//
// Containers are matched by tea or ingredient identity only; quantities are
// compared after a match. When two containers hold the same tea or
// ingredient the one in the lowest slot is used.
package brew
