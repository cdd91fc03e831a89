package interfaces

// Extraction is the tagged result of extracting text from a source file.
// Sentinel extractions carry placeholder text (bracketed, e.g. "[ERROR ...]")
// so downstream stages always have some content to work with; Reason holds
// the machine-readable cause ("error", "empty", "unsupported", "oversized").
type Extraction struct {
	Text     string
	Sentinel bool
	Reason   string
}

// ExtractorService converts source files into raw text.
// Extraction never fails for recoverable conditions; corrupt or unreadable
// content yields a sentinel Extraction instead of an error.
type ExtractorService interface {
	// Extract reads the file at path and returns its text content
	Extract(path string) Extraction

	// Supported reports whether the file extension has a dedicated extractor
	// (unsupported extensions fall back to plain-text decoding)
	Supported(path string) bool
}
