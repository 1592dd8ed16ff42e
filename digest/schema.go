package digest

import (
	"encoding/json"
	"fmt"

	"github.com/theimaginaryfoundation/digest-o-bot/digest/provider"
)

// Shape names one of the structured-output contracts a level call can request.
type Shape string

const (
	// ShapeSection asks for sections and keywords. Used for chunks and chapter digests.
	ShapeSection Shape = "section"
	// ShapeFinal asks for the document abstract.
	ShapeFinal Shape = "final"
	// ShapeFull asks for everything at once, for documents that fit in one chunk.
	ShapeFull Shape = "full"
)

type sectionItem struct {
	Title   string   `json:"title" jsonschema_description:"A descriptive title reflecting its main idea. At most 10 characters."`
	Summary []string `json:"summary" jsonschema_description:"Approximately 3 bullet points summarizing the text. At most 3 items of at most 30 characters each."`
}

type keywordItem struct {
	Term  string `json:"term" jsonschema_description:"Key concepts extracted from the text"`
	Count int    `json:"count" jsonschema_description:"Number of occurrences in text"`
}

type sectionResponse struct {
	Sections []sectionItem `json:"sections" jsonschema_description:"Divide the text into meaning-based sections, considering the context. Each section should capture the essence of the contents. 2 to 3 sections."`
	Keywords []keywordItem `json:"keywords" jsonschema_description:"Up to 5 keywords."`
}

type finalResponse struct {
	FullSummary        []string `json:"full_summary" jsonschema_description:"A concise and comprehensive summary of the entire text. Approximately 3 bullet points summarizing the text."`
	OneSentenceSummary string   `json:"one_sentence_summary" jsonschema_description:"Response in a single sentence, capturing the essence of the main idea. At most 30 characters."`
}

type fullResponse struct {
	Sections           []sectionItem `json:"sections" jsonschema_description:"Divide the text into meaning-based sections, considering the context. Each section should capture the essence of the contents. 2 to 3 sections."`
	Keywords           []keywordItem `json:"keywords" jsonschema_description:"Up to 5 keywords."`
	FullSummary        []string      `json:"full_summary" jsonschema_description:"A concise and comprehensive summary of the entire text. Approximately 3 bullet points summarizing the text."`
	OneSentenceSummary string        `json:"one_sentence_summary" jsonschema_description:"Response in a single sentence, capturing the essence of the main idea. At most 30 characters."`
}

var shapeSchemas = map[Shape]map[string]interface{}{
	ShapeSection: provider.GenerateSchema[sectionResponse](),
	ShapeFinal:   provider.GenerateSchema[finalResponse](),
	ShapeFull:    provider.GenerateSchema[fullResponse](),
}

// Schema returns the JSON schema for the shape.
func (s Shape) Schema() (map[string]interface{}, error) {
	schema, ok := shapeSchemas[s]
	if !ok {
		return nil, fmt.Errorf("unknown response shape %q", s)
	}
	return schema, nil
}

// Keys returns the top-level keys the shape's response must carry.
func (s Shape) Keys() []string {
	schema, ok := shapeSchemas[s]
	if !ok {
		return nil
	}
	return provider.RequiredFields(schema)
}

// SchemaText is the serialized schema, the form whose tokens count against the context window.
func (s Shape) SchemaText() (string, error) {
	schema, err := s.Schema()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal %s schema: %w", s, err)
	}
	return string(b), nil
}
