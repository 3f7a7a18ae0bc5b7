package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TablePrompt instructs the model to turn located table text into
// {"table_1": [...], ...} row objects.
const TablePrompt = `You are a helpful assistant. Below is a table extracted from a PDF file in plain text. Your job is to extract the table(s) into valid JSON with proper structure.

Instructions:
- Identify each table using its heading (e.g. 'TABLE 1. Patient demographics').
- Use the first row of data as the column headers (e.g. 'SOA (n = 32)', 'TTA (n = 25)', 'p Value').
- For each data row, create an object with the exact column header names as keys.
- If a row acts as a group label (e.g. 'Presenting symptom, n (%)'), create a row with only a 'group' key.
- Do NOT create duplicate columns or add extra keys like 'Value', 'Value_TTA', 'p_Value'.
- Use the exact column names from the first row as keys.
- Output a JSON object like { "table_1": [...], "table_2": [...] }.
- Only return the JSON object, with no explanations or markdown formatting.

Example structure:
{
  "table_1": [
    {"group": "Clinical description"},
    {"SOA (n = 32)": "Age in yrs, mean ± SD", "TTA (n = 25)": "58.16 ± 16.16", "p Value": "0.87"},
    {"group": "Presenting symptom, n (%)"},
    {"SOA (n = 32)": "Incidental finding", "TTA (n = 25)": "6 (24)", "p Value": "0.73"}
  ]
}

`

// AnalyzePrompt asks for a short structured reading of each table.
const AnalyzePrompt = `Below are one or more tables extracted from a biomedical article, separated by blank lines.

For each table return an entry with these fields:
- "title": the table heading as written (e.g. 'TABLE 2. Outcomes')
- "columns": the column headers in order
- "row_count": number of data rows
- "summary": one or two sentences describing what the table reports
- "key_findings": list of the notable values or comparisons (max 5 strings)

Output a JSON object like { "table_1": {...}, "table_2": {...} } keyed in the order the tables appear.
Only return the JSON object, with no explanations or markdown formatting.

`

// AttributePrompt asks for one answer per configured attribute.
const AttributePrompt = `Below is text from a biomedical article. Answer each attribute query using only this text.

Rules:
- Return a JSON object whose keys are exactly the attribute names given.
- Each value is the answer as a short string, or a list of strings when the text lists several.
- Use null when the text does not answer the query. Do not guess.
- Only return the JSON object, with no explanations or markdown formatting.

Attributes:
`

// BuildTablePrompt appends the table text to TablePrompt.
func BuildTablePrompt(markdown string) string {
	return TablePrompt + markdown
}

// BuildAnalyzeTablesPrompt joins table blocks under AnalyzePrompt.
func BuildAnalyzeTablesPrompt(tables []string) string {
	var sb strings.Builder
	sb.WriteString(AnalyzePrompt)
	for i, t := range tables {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(t))
	}
	return sb.String()
}

// BuildAttributePrompt embeds the attribute list as JSON, then the section
// breadcrumb when known, then the text.
func BuildAttributePrompt(attrs []Attribute, breadcrumb []string, text string) (string, error) {
	encoded, err := json.MarshalIndent(attrs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(AttributePrompt)
	sb.Write(encoded)
	sb.WriteString("\n\n---\n")
	if len(breadcrumb) > 0 {
		sb.WriteString("Section: ")
		sb.WriteString(strings.Join(breadcrumb, " > "))
		sb.WriteString("\n---\n")
	}
	sb.WriteString(text)
	return sb.String(), nil
}
