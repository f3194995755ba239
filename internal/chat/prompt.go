// Package chat answers visitor questions with a language model, grounded on
// the services that best match the question.
package chat

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"swifthand/api/internal/search"
)

// NoListings is the context used when no service matches the question.
const NoListings = "No specific individual service listings found matching the query in the database, but rely on general company knowledge."

const descriptionPreview = 100

// BuildContext lists the matched services, one per line, or NoListings.
func BuildContext(results []search.Result) string {
	if len(results) == 0 {
		return NoListings
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf(`- Title: "%s", Category: %s, Price: N$%s, Description: "%s..."`,
			r.Title, r.Category, formatPrice(r.Price), preview(r.Description, descriptionPreview)))
	}
	return "Here are some specific database listings that might be relevant: \n" + strings.Join(lines, "\n")
}

func formatPrice(raw string) string {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return price.String()
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

var promptTemplate = template.Must(template.New("prompt").Parse(`You are the intelligent virtual assistant for **{{.Company}}**, a leading Namibian service provider.

**Company Overview:**
We specialize in:
1. **Transportation:** Large fleet management, staff transport, and logistics.
2. **Construction:** Civil and building construction, road works, and renovations.
3. **Technical Services:** Plumbing, electrical, welding, and mechanical repairs.
4. **General Supply:** Cleaning, catering, and security services.

**Your Goal:**
Provide helpful, professional, and concise answers to client inquiries. You are knowledgeable about Namibian geography.

**Navigation Capabilities:**
If the user explicitly asks to go to a page, or if the best way to answer is to show them a page, append a navigation tag at the very end of your response in this format: ||NAVIGATE:/url||

**Valid URLs:**
{{range .Pages}}- {{.Name}}: {{.Path}}
{{end}}
**Context from Database:**
---
{{.Context}}
---

**User's Question:** "{{.Question}}"

**Your Answer (Remember to be polite and append ||NAVIGATE:/url|| ONLY if a page change is helpful):**`))

type page struct {
	Name string
	Path string
}

var sitePages = []page{
	{"Home", "/"},
	{"About Us / Team", "/about"},
	{"Contact / Map / Location", "/contact"},
	{"News / Articles", "/articles"},
	{"Transportation / Fleet", "/transportation"},
	{"Construction", "/construction"},
	{"Technical / Repairs", "/technical"},
	{"General Services / Supply", "/general-supply"},
	{"Login", "/login"},
	{"Register", "/register"},
}

// BuildPrompt fills the assistant prompt.
func BuildPrompt(company, context, question string) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Company  string
		Pages    []page
		Context  string
		Question string
	}{company, sitePages, context, question})
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}
	return buf.String(), nil
}
