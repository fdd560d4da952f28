package constants

// Block types an OCR engine may tag a fragment with. Only LINE fragments
// take part in row reconstruction.
const (
	BlockTypePage = "PAGE"
	BlockTypeLine = "LINE"
	BlockTypeWord = "WORD"
)

// OCR engine identifiers accepted by OCR_ENGINE.
const (
	EngineTextract     = "textract"
	EngineVision       = "vision"
	EngineAzure        = "azure"
	EngineTesseract    = "tesseract"
	EngineTesseractCLI = "tesseract-cli"
)

// Extraction providers accepted by LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)
