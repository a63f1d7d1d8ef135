package extraction

import "strings"

const entityLabelList = "Module, File, Function, Class, Component, DesignToken, Contract, Requirement, Person, Concept, Feature, Document, API, Chunk, Client, Project, Task, Workflow, Agent, Run"

const relationshipLabelList = "IMPORTS, EXPORTS, CALLS, CONTAINS, EXTENDS, USES, DEFINES, REQUIRES, REFERENCES, IMPLEMENTS, DEPENDS_ON, RELATED_TO, CREATED_BY, OWNS, WORKS_ON, MANAGES"

const basePrompt = `You extract a knowledge graph from a document chunk.

Entities must use one of these labels: ` + entityLabelList + `.
Relationships must use one of these types: ` + relationshipLabelList + `.

Respond with JSON only, no prose, shaped exactly as:
{"entities":[{"temp_id":"e1","name":"...","label":"...","properties":{}}],
 "relationships":[{"source":"e1","target":"e2","label":"...","properties":{}}]}

temp_id values are local to this chunk; relationships reference entities by
their temp_id. Omit an entity or relationship entirely rather than guessing
at a label outside the allowed sets.`

var contentTypePrompts = map[string]string{
	"design_token": basePrompt + `

This chunk documents design tokens (colors, spacing, typography scales).
Prefer the DesignToken label for token definitions and Component for UI
components that consume them; connect consumption with USES.`,
	"contract": basePrompt + `

This chunk documents an API or service contract. Prefer Contract and API
labels for the interface surface, Requirement for obligations it imposes,
and DEFINES/IMPLEMENTS/REQUIRES for how they interrelate.`,
	"component": basePrompt + `

This chunk documents a software component. Prefer Component, Module, File,
Function, and Class labels; use CONTAINS for structural nesting and
DEPENDS_ON/IMPORTS for cross-component relationships.`,
	"spec": basePrompt + `

This chunk is a specification or design document. Prefer Requirement,
Feature, and Concept labels, and REFERENCES/RELATED_TO/REQUIRES for how
they connect to each other.`,
	"note": basePrompt + `

This chunk is an informal note. Extract only entities and relationships you
are confident about; prefer Concept and Person labels where unsure.`,
	"general": basePrompt,
}

// systemPromptFor returns the content-type-specialised extraction prompt,
// falling back to the generic prompt for an unrecognised content type.
func systemPromptFor(contentType string) string {
	if p, ok := contentTypePrompts[strings.ToLower(contentType)]; ok {
		return p
	}
	return basePrompt
}
