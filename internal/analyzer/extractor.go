package analyzer

import (
	"regexp"
	"strings"
)

const minParagraphLength = 50

var (
	articleHeaderRegex  = regexp.MustCompile(`(?im)^[ \t]*(?:ARTICLE|SECTION|CLAUSE)\s+\d+`)
	numberedHeaderRegex = regexp.MustCompile(`(?m)^[ \t]*\d+\.(?:[ \t]|$)`)
	paragraphBreakRegex = regexp.MustCompile(`\n\s*\n`)
)

type topicalSweep struct {
	pattern *regexp.Regexp
	typ     SectionType
}

// Topical sweeps run after the structural patterns, in this order.
var topicalSweeps = []topicalSweep{
	{regexp.MustCompile(`(?i)(?:payment|compensation|salary|fee|cost|price|amount)[^\n]*(?:\.|;|\n)`), TypePaymentTerms},
	{regexp.MustCompile(`(?i)(?:termination|terminate|end|expire|cancel)[^\n]*(?:\.|;|\n)`), TypeTermination},
	{regexp.MustCompile(`(?i)(?:liability|responsible|damages|loss|harm)[^\n]*(?:\.|;|\n)`), TypeLiability},
	{regexp.MustCompile(`(?i)(?:confidential|proprietary|trade secret|non-disclosure)[^\n]*(?:\.|;|\n)`), TypeConfidentiality},
	{regexp.MustCompile(`(?i)(?:intellectual property|copyright|patent|trademark)[^\n]*(?:\.|;|\n)`), TypeIPRights},
}

// ExtractSections splits contract text into typed, weighted sections.
// Matches from different categories may overlap; every match is kept.
// Text with no structural or topical match falls back to paragraphs.
func ExtractSections(text string) []ContractSection {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sections []ContractSection
	sections = append(sections, structuralBlocks(text, articleHeaderRegex, TypeArticle)...)
	sections = append(sections, structuralBlocks(text, numberedHeaderRegex, TypeNumberedClause)...)

	for _, sweep := range topicalSweeps {
		for _, match := range sweep.pattern.FindAllString(text, -1) {
			match = strings.TrimSpace(match)
			if match == "" {
				continue
			}
			sections = append(sections, newSection(match, sweep.typ))
		}
	}

	if len(sections) == 0 {
		sections = splitParagraphs(text)
	}

	return sections
}

// structuralBlocks cuts the text at every header match; each block runs
// from its header to the next header of the same kind or end of text.
func structuralBlocks(text string, header *regexp.Regexp, typ SectionType) []ContractSection {
	locs := header.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	blocks := make([]ContractSection, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := strings.TrimSpace(text[loc[0]:end])
		if block == "" {
			continue
		}
		blocks = append(blocks, newSection(block, typ))
	}
	return blocks
}

func splitParagraphs(text string) []ContractSection {
	var sections []ContractSection
	for _, p := range paragraphBreakRegex.Split(text, -1) {
		p = strings.TrimSpace(p)
		if len(p) <= minParagraphLength {
			continue
		}
		sections = append(sections, newSection(p, TypeParagraph))
	}
	return sections
}

func newSection(text string, typ SectionType) ContractSection {
	return ContractSection{
		Text:       text,
		Type:       typ,
		Importance: Importance(typ),
	}
}
