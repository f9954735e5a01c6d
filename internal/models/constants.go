package models

const (
	ThinkTag         = `(?s)<think>.*?</think>`
	ContextSeparator = "\n\n"
)

// ProcessingStatus values tracked for each uploaded document.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// User-facing answers returned by the retrieval engine.
const (
	MsgInvalidQuestion   = "Please provide a valid question."
	MsgNoDocuments       = "No documents have been uploaded and processed yet. Please upload a document first."
	MsgIndexUnavailable  = "Error: Cannot access document collection"
	MsgScopedMiss        = "No relevant content found in document ID %s, but other documents contain relevant information. Try searching all documents instead."
	MsgNoRelevantContent = "No relevant content found in any documents for your question."
	MsgNoRelevantDocs    = "No relevant documents found to answer your question: '%s'"
	MsgQueryFailed       = "Error querying documents: %v"
	MsgEmptyAnswer       = "I couldn't generate a proper answer based on the provided context."
	MsgGenUnreachable    = "Error: Cannot connect to the generation service at %s. Make sure it is running with the %s model."
	MsgGenTimeout        = "Error: Request timed out. The model might be taking too long to respond."
	MsgGenStatus         = "Error: Generation service returned status %d. Make sure it is running with the %s model."
	MsgGenFailed         = "Error generating answer: %v"
)

var (
	// AnswerPromptTemplate must keep the instruction to answer strictly from
	// the context and to say so when the context is insufficient.
	AnswerPromptTemplate = `Based on the following context from the document(s), provide a clear and accurate answer to the question. Answer only from the context. If the context doesn't contain enough information to answer the question, say so.

Context:
%s

Question: %s

Answer:`
)
