package council

import (
	"strings"
	"text/template"

	"github.com/ahrav/go-conclave/internal/domain"
)

// rankingPromptTmpl instructs an evaluator to critique the anonymized
// responses and emit a machine-parseable ranking footer. The format
// contract (header text, numbered lines, bare labels) is what the
// ranking parser expects.
var rankingPromptTmpl = template.Must(template.New("ranking").Parse(
	`You are evaluating different responses to the following question:

Question: {{.Query}}

Here are the responses from different models (anonymized):

{{.ResponsesText}}

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`))

var rebuttalPromptTmpl = template.Must(template.New("rebuttal").Parse(
	`You previously provided the following response to a question:

Original Question: {{.Query}}

Your Response:
{{.OriginalResponse}}

Other council members have provided the following critiques of your response:

{{.CritiquesText}}

Please respond to these critiques. You may:
1. Defend your original position with additional evidence or reasoning
2. Acknowledge valid points and refine your answer
3. Clarify any misunderstandings

Keep your rebuttal focused and concise. Do not completely rewrite your answer - just address the specific critiques.`))

var advocatePromptTmpl = template.Must(template.New("advocate").Parse(
	`You are playing Devil's Advocate. Your job is to challenge the top-ranked response to the following question, even if you might personally agree with it.

Original Question: {{.Query}}

Top-Ranked Response (from {{.TopModel}}):
{{.TopResponse}}

This response received an average ranking of {{printf "%.2f" .AverageRank}} from the council.

Your task:
1. Identify potential weaknesses, blind spots, or assumptions in this response
2. Present counterarguments or alternative perspectives
3. Highlight any edge cases where this answer might fail
4. Question any unsupported claims

Be rigorous but fair. The goal is to stress-test the response, not to be contrarian for its own sake.`))

var chairmanPromptTmpl = template.Must(template.New("chairman").Parse(
	`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: {{.Query}}

STAGE 1 - Individual Responses:
{{.Stage1Text}}

STAGE 2 - Peer Rankings:
{{.Stage2Text}}
{{.RebuttalsText}}{{.AdvocateText}}

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any rebuttals and how they affect the strength of arguments
- The devil's advocate challenge and whether the concerns are valid
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`))

func renderTemplate(tmpl *template.Template, data any) string {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		// Templates are static and data fields are plain values, so
		// execution cannot fail at runtime.
		panic(err)
	}
	return b.String()
}

// rankingPrompt builds the evaluator prompt over the anonymized
// response set. Label order follows the assignment, not model order.
func rankingPrompt(query string, responses []domain.ModelResponse, labels domain.LabelMap) string {
	var sections []string
	for _, label := range labels.Labels() {
		model, ok := labels.Model(label)
		if !ok {
			continue
		}
		for _, r := range responses {
			if r.Model == model {
				sections = append(sections, label+":\n"+r.Content)
				break
			}
		}
	}
	return renderTemplate(rankingPromptTmpl, struct {
		Query         string
		ResponsesText string
	}{query, strings.Join(sections, "\n\n")})
}

func rebuttalPrompt(query, originalResponse string, critiques []domain.Critique) string {
	var sections []string
	for _, c := range critiques {
		sections = append(sections, "Critique from "+shortModelName(c.From)+":\n"+c.Content)
	}
	return renderTemplate(rebuttalPromptTmpl, struct {
		Query            string
		OriginalResponse string
		CritiquesText    string
	}{query, originalResponse, strings.Join(sections, "\n\n")})
}

func advocatePrompt(query string, top domain.ModelResponse, avgRank float64) string {
	return renderTemplate(advocatePromptTmpl, struct {
		Query       string
		TopModel    string
		TopResponse string
		AverageRank float64
	}{query, top.Model, top.Content, avgRank})
}

func chairmanPrompt(
	query string,
	responses []domain.ModelResponse,
	rankings []domain.RankingRecord,
	rebuttals []domain.Rebuttal,
	advocate *domain.AdvocateReport,
) string {
	var stage1 []string
	for _, r := range responses {
		stage1 = append(stage1, "Model: "+r.Model+"\nResponse: "+r.Content)
	}

	var stage2 []string
	for _, r := range rankings {
		stage2 = append(stage2, "Model: "+r.Evaluator+"\nRanking: "+r.Verdict)
	}

	rebuttalsText := ""
	if len(rebuttals) > 0 {
		var parts []string
		for _, r := range rebuttals {
			parts = append(parts, "Model: "+r.Model+"\nRebuttal: "+r.Content)
		}
		rebuttalsText = "\n\nREBUTTALS:\n" + strings.Join(parts, "\n\n")
	}

	advocateText := ""
	if advocate != nil {
		advocateText = "\n\nDEVIL'S ADVOCATE CHALLENGE:\n" + advocate.Challenge
	}

	return renderTemplate(chairmanPromptTmpl, struct {
		Query         string
		Stage1Text    string
		Stage2Text    string
		RebuttalsText string
		AdvocateText  string
	}{query, strings.Join(stage1, "\n\n"), strings.Join(stage2, "\n\n"), rebuttalsText, advocateText})
}

// shortModelName strips the provider prefix for display in prompts.
func shortModelName(model string) string {
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		return model[i+1:]
	}
	return model
}
