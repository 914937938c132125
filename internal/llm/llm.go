// Package llm selects, builds and decorates LLM providers.
package llm
