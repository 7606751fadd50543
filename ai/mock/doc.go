// Package mock provides deterministic test doubles for the ai package
// interfaces. The mock embedder derives unit vectors from a text hash, so
// identical text always embeds identically without a model.
package mock
