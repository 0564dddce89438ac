package document

// Kind identifies the source format of an ingested file.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindXLSX     Kind = "xlsx"
	KindText     Kind = "text"
	KindCSV      Kind = "csv"
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
	KindImage    Kind = "image"
	KindZIP      Kind = "zip"
)

// RawDocument is the extractor's output: cleaned text plus structural
// metadata. Created once per file, immutable afterward.
type RawDocument struct {
	Kind       Kind
	SourceName string
	FileSize   int64
	Text       string  // cleaned full text ("\f" page separators normalized)
	Pages      []Page  // PDF only
	Sheets     []Sheet // spreadsheets only
	NeedsOCR   bool
	Quality    *TextQuality // PDF only
}

// Page is one page of extracted PDF text.
type Page struct {
	Number int
	Text   string
}

// Sheet preserves spreadsheet row structure for the sheet chunker.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// TextQuality is the PDF text-quality heuristic result. Score runs 0-100;
// low scores indicate native extraction likely corrupted the layout and
// the document should be routed to OCR instead.
type TextQuality struct {
	Score             int
	CharDensity       float64 // chars per KB of file size
	HasTableStructure bool
	Issues            []string
}

// ChunkKind classifies chunk content.
type ChunkKind string

const (
	ChunkText  ChunkKind = "text"
	ChunkTable ChunkKind = "table"
	ChunkMixed ChunkKind = "mixed"
)

// Chunk is a sized text segment with offsets back into the cleaned text.
// Chunks are produced in document order and never mutated after creation.
type Chunk struct {
	Index         int
	Content       string
	Kind          ChunkKind
	TokenEstimate int
	StartOffset   int
	EndOffset     int
	ContentHash   string
	Heading       string // nearest preceding heading, context for extraction
	Position      string // "start", "middle" or "end" of the document
	Sheet         string // source sheet name for spreadsheet chunks
}
