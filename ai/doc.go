// Package ai defines the capability interfaces the document pipeline depends
// on: text embedding, cosine similarity, and free-text synthesis.
//
// Implementations are selected at process startup. The openai subpackage
// talks to OpenAI-compatible services; the mock subpackage provides
// deterministic stand-ins for tests and offline development.
package ai
