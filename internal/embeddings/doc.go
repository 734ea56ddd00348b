// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX, the retrieval default) and TEI (external
// text-embeddings-inference service). A factory selects the provider at
// runtime with automatic dimension detection for common models.
package embeddings
