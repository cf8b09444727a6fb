package vision

// BuildExtractPrompt asks the vision model for a canta.menu v1 document and
// nothing else.
func BuildExtractPrompt() string {
	return `
Analyze this menu/catalog image and extract the information as JSON following the "canta.menu v1" schema exactly.

Return ONLY valid JSON with this structure:
{
  "source": "string description of what this menu/catalog is",
  "sections": [
    {
      "name": "section name or null",
      "time": "time period like 'breakfast' or null",
      "items": [
        {
          "name": "item name",
          "price": {"value": number_or_null, "currency": "MYR"},
          "size": {"value": number_or_null, "unit": "g|kg|ml|l|pcs|pack|null"},
          "desc": "description or null",
          "tags": ["tag1", "tag2"] or null
        }
      ]
    }
  ],
  "meta": {"service_charge_note": true_or_false_or_null},
  "schema": {"name": "canta.menu", "version": "1.0"}
}

Rules:
- Return JSON ONLY, no commentary
- If value unknown, use null (do NOT hallucinate)
- Currency is "MYR" when RM shown; parse "RM 12" to 12.00 in price.value
- Keep local terms as-is (e.g., "Nasi Lemak")
- For tables or sectionless pages, use sections=[{"name": null, "time": null, "items":[...]}]
`
}

// BuildRepairPrompt asks the model to fix its own invalid output. Used for
// exactly one retry per extraction.
func BuildRepairPrompt(originalJSON, errText string) string {
	return `
You returned invalid JSON for schema 'canta.menu v1'. Here is your JSON and the error. Fix it to match the schema exactly. Return JSON only.

Your JSON:
` + originalJSON + `

Error:
` + errText + `

Return ONLY valid JSON following the canta.menu v1 schema. No commentary.
`
}
