// Package analyze is the AI-analysis capability adapter. It submits
// extracted text for structured extraction and defensively parses the
// response into the fixed metadata schema.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/llm"
	"github.com/ianbrucey/war-room-sub000/internal/model"
)

// TruncationMarker is appended to capped input so the model, and anyone
// auditing the payload, can tell the text is incomplete.
const TruncationMarker = "[TRUNCATED: input exceeded analysis limit]"

// ErrMalformedResponse is returned when the model output cannot be parsed as
// the metadata schema even after a repair attempt. Not retried further.
var ErrMalformedResponse = errors.New("analysis response is not valid metadata JSON")

// Analyzer is the AI-analysis capability adapter.
type Analyzer interface {
	// Analyze derives document metadata from extracted text. Re-running is
	// idempotent; the result replaces any prior metadata wholesale.
	Analyze(ctx context.Context, extractedText, filename string) (*model.DocumentMetadata, error)
}

var _ Analyzer = (*LLMAnalyzer)(nil)

// LLMAnalyzer performs structured extraction through a chat completion
// endpoint.
type LLMAnalyzer struct {
	Client  *llm.Client
	CharCap int // max characters submitted; excess is cut at the cap with a marker
}

func NewLLMAnalyzer(client *llm.Client, charCap int) *LLMAnalyzer {
	return &LLMAnalyzer{Client: client, CharCap: charCap}
}

const systemPrompt = "You are a legal document analyst. " +
	"Extract structured metadata from the document text. " +
	"Respond with a single JSON object and nothing else."

const schemaPrompt = `Output JSON with this EXACT structure:
{
  "executive_summary": "detailed summary of the document",
  "document_type": "Motion/Response/Complaint/Order/Notice/Evidence/Research",
  "key_parties": ["parties involved - plaintiff, defendant, counsel"],
  "main_arguments": ["primary legal arguments, claims, or requests"],
  "important_dates": [{"date": "YYYY-MM-DD", "description": "what happened", "page": 1}],
  "jurisdiction": "where this case is being heard (if applicable)",
  "authorities": ["laws, statutes, or precedents cited"],
  "critical_facts": ["key factual allegations or findings"],
  "requested_relief": "what outcome or relief is being sought"
}

Escape all control characters in JSON strings. Ensure valid JSON output.`

func (a *LLMAnalyzer) Analyze(ctx context.Context, extractedText, filename string) (*model.DocumentMetadata, error) {
	text, truncated := capInput(extractedText, a.CharCap)

	user := fmt.Sprintf("Document filename: %s\n\n%s\n\nDocument text:\n%s", filename, schemaPrompt, text)

	reply, err := a.Client.Chat(ctx, systemPrompt, user)
	if err != nil {
		return nil, err
	}

	meta, err := parseMetadata(reply)
	if err != nil {
		// One repair attempt with the malformed output before surfacing a
		// stage failure.
		logrus.Warnf("analysis response for %s failed to parse, attempting repair: %v", filename, err)
		repair := fmt.Sprintf("The previous response was not valid JSON matching the schema.\n\n%s\n\nPrevious response:\n%s\n\nReturn ONLY the corrected JSON object.", schemaPrompt, reply)
		reply, err = a.Client.Chat(ctx, systemPrompt, repair)
		if err != nil {
			return nil, err
		}
		meta, err = parseMetadata(reply)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	if meta.DocumentType == "" {
		meta.DocumentType = ClassifyFilename(filename)
	}
	meta.Truncated = truncated

	return meta, nil
}

// capInput truncates text at the cap, always leaving an explicit marker so
// incompleteness is detectable downstream. The cut backs off to a rune
// boundary so the payload stays valid UTF-8.
func capInput(text string, cap int) (string, bool) {
	if cap <= 0 || len(text) <= cap {
		return text, false
	}
	cut := cap
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n" + TruncationMarker, true
}

// parseMetadata strips any surrounding formatting wrapper and parses the
// fixed schema.
func parseMetadata(reply string) (*model.DocumentMetadata, error) {
	cleaned := stripFences(reply)

	var meta model.DocumentMetadata
	if err := json.Unmarshal([]byte(cleaned), &meta); err != nil {
		return nil, err
	}
	if meta.ExecutiveSummary == "" {
		return nil, errors.New("missing executive_summary")
	}

	return &meta, nil
}

// stripFences removes markdown code fences and any text outside the
// outermost JSON object.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "```") {
		if idx := strings.Index(s, "```json"); idx >= 0 {
			s = s[idx+len("```json"):]
		} else if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[idx+3:]
		}
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return strings.TrimSpace(s)
}
