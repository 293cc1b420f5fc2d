// Package errs provides structured error handling for the indexer, store,
// chunker, watcher, and search orchestrator.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: filter / id / path validation errors
//   - 2XX: I/O errors (file, disk, store)
//   - 3XX: model load errors (embedder, reranker)
//   - 4XX: embedding generation errors
//   - 5XX: parse / internal errors
package errs

// Category classifies an error for presentation and metrics.
type Category string

const (
	CategoryValidation Category = "VALIDATION"
	CategoryIO         Category = "IO"
	CategoryModel      Category = "MODEL"
	CategoryEmbedding  Category = "EMBEDDING"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Kind is one of the abstract error kinds the core produces (see §7).
// A Kind maps onto exactly one concrete Code; store and mcp error
// translation dispatch on Kind rather than on the code string.
type Kind string

const (
	// KindInvalidFilter: filter input failed the whitelist after sanitization.
	KindInvalidFilter Kind = "InvalidFilter"
	// KindPathTraversal: a path argument escapes the configured root.
	KindPathTraversal Kind = "PathTraversal"
	// KindInvalidID: a malformed chunk id reached a store operation requiring validation.
	KindInvalidID Kind = "InvalidId"
	// KindModelLoad: embedder/reranker failed to initialize.
	KindModelLoad Kind = "ModelLoad"
	// KindEmbeddingGeneration: a vector has the wrong length or non-finite values.
	KindEmbeddingGeneration Kind = "EmbeddingGeneration"
	// KindIoFailure: file read or store I/O failure.
	KindIoFailure Kind = "IoFailure"
	// KindParseFailure: tree-sitter parse error (absorbed by the chunker fallback).
	KindParseFailure Kind = "ParseFailure"
	// KindInternal is a defensive default for errors outside the seven kinds above.
	KindInternal Kind = "Internal"
)

// Error codes organized by category. Each maps to exactly one Kind.
const (
	ErrCodeInvalidFilter = "ERR_101_INVALID_FILTER"
	ErrCodePathTraversal = "ERR_102_PATH_TRAVERSAL"
	ErrCodeInvalidID     = "ERR_103_INVALID_ID"

	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeStoreIO      = "ERR_202_STORE_IO"
	ErrCodeCorruptIndex = "ERR_203_CORRUPT_INDEX"

	ErrCodeModelLoad = "ERR_301_MODEL_LOAD"

	ErrCodeEmbeddingGeneration = "ERR_401_EMBEDDING_GENERATION"
	ErrCodeDimensionMismatch   = "ERR_402_DIMENSION_MISMATCH"

	ErrCodeParseFailure = "ERR_501_PARSE_FAILURE"
	ErrCodeInternal     = "ERR_502_INTERNAL"
)

// kindByCode maps each concrete code to its abstract Kind.
var kindByCode = map[string]Kind{
	ErrCodeInvalidFilter:       KindInvalidFilter,
	ErrCodePathTraversal:       KindPathTraversal,
	ErrCodeInvalidID:           KindInvalidID,
	ErrCodeFileNotFound:        KindIoFailure,
	ErrCodeStoreIO:             KindIoFailure,
	ErrCodeCorruptIndex:        KindIoFailure,
	ErrCodeModelLoad:           KindModelLoad,
	ErrCodeEmbeddingGeneration: KindEmbeddingGeneration,
	ErrCodeDimensionMismatch:   KindEmbeddingGeneration,
	ErrCodeParseFailure:        KindParseFailure,
	ErrCodeInternal:            KindInternal,
}

// categoryFromCode extracts category from error code's numeric prefix.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}
	switch numStr[0] {
	case '1':
		return CategoryValidation
	case '2':
		return CategoryIO
	case '3':
		return CategoryModel
	case '4':
		return CategoryEmbedding
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeEmbeddingGeneration:
		// Single-item batch failures degrade to a zero-vector placeholder;
		// only orchestrator-level failures are true errors.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// KindOf returns the abstract Kind for a concrete error code.
func KindOf(code string) Kind {
	if k, ok := kindByCode[code]; ok {
		return k
	}
	return KindInternal
}
