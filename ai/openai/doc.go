// Package openai implements the ai capability interfaces against
// OpenAI-compatible HTTP services (including local servers such as Ollama).
package openai
