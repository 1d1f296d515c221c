package questionbank

import (
	"fmt"
	"strings"

	"github.com/kapilsaini46/rks/internal/blueprint"
	"github.com/kapilsaini46/rks/internal/models"
)

// AssertionReasonOptions are the four fixed choices of an assertion-reason item.
var AssertionReasonOptions = []string{
	"(A) Both Assertion (A) and Reason (R) are true and Reason (R) is the correct explanation of Assertion (A).",
	"(B) Both Assertion (A) and Reason (R) are true but Reason (R) is not the correct explanation of Assertion (A).",
	"(C) Assertion (A) is true but Reason (R) is false.",
	"(D) Assertion (A) is false but Reason (R) is true.",
}

func systemInstruction(req blueprint.Request) string {
	return fmt.Sprintf(`You are an expert CBSE (Central Board of Secondary Education, India) and NCERT curriculum specialist.
Your task is to create strictly academic, high-quality question papers that adhere to the latest CBSE guidelines.

Target Audience: Class %[1]s Students (%[2]s).
Topic: %[3]s.

CORE PRINCIPLES:
1. STRICT CURRICULUM ADHERENCE: All questions must be within the scope of NCERT textbooks for Class %[1]s.
2. ACADEMIC RIGOR: Questions should test conceptual understanding, application, and critical thinking, not just rote memory.
3. DIAGRAMS: If a question requires a diagram (e.g., "Draw the human eye", "Circuit diagram", "Geometry construction"), you MUST provide a description for the diagram in the 'imagePrompt' field.

FORMATTING RULES:
1. STRICTLY use LaTeX for ALL math expressions, wrapped in $...$ (e.g., $x^2 + y^2 = r^2$).
2. For chemical formulas, use standard text or LaTeX (e.g., $H_2SO_4$).
3. Keep the language formal, clear, and unambiguous.

Return ONLY valid JSON.`, req.ClassNum, req.Subject, req.Topic)
}

func promptText(req blueprint.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d %q questions.\nMarks per question: %s.\n\n", req.Count, string(req.Type), formatMarks(req.Marks))
	b.WriteString(`For MCQs: Include 4 distinct options and the correct answer.
For Match the Following: Provide 4-5 pairs. The 'right' column in the question should be shuffled. Provide the key in 'answer'.
For Assertion-Reason: Follow standard CBSE format (Two statements, 4 standard options).

AUTOMATIC DIAGRAMS:
If a question implies a visual element (e.g., "Identify the label...", "Draw the structure...", "Find area of figure..."), you MUST set the 'imagePrompt' field with a detailed description of the image needed.
Example: "Line diagram of a human heart with main chambers labeled."
`)
	if req.Context != nil && strings.TrimSpace(req.Context.Text) != "" {
		b.WriteString("\nREFERENCE CONTEXT:\n")
		b.WriteString(req.Context.Text)
		b.WriteString("\n")
	}
	b.WriteString(`
Response Format:
[
  {
    "text": "Question text...",
    "options": ["A", "B", "C", "D"],
    "matchPairs": [{ "left": "...", "right": "..." }],
    "answer": "Correct answer or marking scheme",
    "imagePrompt": "Optional description for AI image generator"
  }
]`)
	if req.Type == models.QuestionTypeAssertionReason {
		b.WriteString("\nFor Assertion-Reason questions, use this exact format for 'text':\n")
		b.WriteString("Assertion (A): ...\nReason (R): ...\n\nAnd these exact options:\n")
		b.WriteString(strings.Join(AssertionReasonOptions, "\n"))
	}
	return b.String()
}

func diagramPrompt(subject string) string {
	return fmt.Sprintf("Create a clear, high-contrast, educational black and white line diagram for a school question paper. Subject: %s. Do not include text in the image if possible, or keep it minimal.", subject)
}

func formatMarks(m float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", m), "0"), ".")
}
