package service

import (
	"bytes"
	"strings"
	"text/template"
)

var (
	categoryPrompt = template.Must(template.New("category").Parse(`Classify the following todo into exactly one of these categories:
- work
- personal
- shopping
- health
- learning
- other

Todo: "{{.Text}}"

Return only the category name, without any explanation.
`))

	priorityPrompt = template.Must(template.New("priority").Parse(`Decide the priority of the following todo (low, medium, high):
- high: urgent, important, or due soon
- medium: important but not urgent
- low: minor, can be done later

Todo: "{{.Text}}"

Return only one word: low, medium, or high.
`))

	schedulePrompt = template.Must(template.New("schedule").Parse(`You are an AI productivity assistant. Break down the following task into a realistic schedule over {{.Days}} day(s):

Task: "{{.Description}}"

Guidelines:
- Split the work logically across {{.Days}} day(s)
- Each day should have 1-3 manageable subtasks
- Consider natural workflow and dependencies
- Include preparation, execution and review phases where appropriate
- Suggest good times for different kinds of work (morning for focused work, afternoon for meetings)
- Each subtask should be achievable in 1-4 hours
- Be specific and actionable

Return a JSON array with this exact format:
[
  {"title": "Specific task description", "day": 1, "time": "09:00"}
]
"day" is an integer from 1 to {{.Days}}. "time" is optional, 24h format.

Example for "Prepare presentation for client meeting" over 3 days:
[
  {"title": "Research client background and requirements", "day": 1, "time": "09:00"},
  {"title": "Create presentation outline and structure", "day": 1, "time": "14:00"},
  {"title": "Design slides and add content", "day": 2, "time": "09:00"},
  {"title": "Review and refine presentation", "day": 2, "time": "15:00"},
  {"title": "Practice presentation and prepare for Q&A", "day": 3, "time": "10:00"}
]

Return ONLY the JSON array, no additional text.
`))

	breakdownPrompt = template.Must(template.New("breakdown").Parse(`Break down this task into 3-5 smaller, actionable sub-tasks:
"{{.Text}}"

Guidelines:
- Each sub-task should be specific and actionable
- Sub-tasks should be achievable in 15-30 minutes
- Use clear, simple language
- Focus on practical steps
- Don't include the original task

Example:
Input: "Plan a birthday party"
Output:
Create guest list and send invitations
Choose and book a venue
Plan the menu and buy food
Buy decorations and party supplies

Return each sub-task on a new line, no numbering or bullets.
`))

	suggestionPrompt = template.Must(template.New("suggestions").Parse(`Based on existing todos: "{{.Existing}}"

Generate 4-6 smart task suggestions that:
- Break daily activities into small, actionable tasks
- Complement existing tasks without duplicating them
- Are practical and achievable within a day
- Cover different life areas (work, health, personal, learning)
- Use specific, actionable language

Examples of good suggestions:
Review emails and respond to urgent ones
Take a 10-minute walk outside
Prepare tomorrow's outfit

Return each suggestion on a new line, no numbering.
`))
)

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// Templates are static and only read plain fields.
		panic(err)
	}
	return strings.TrimSpace(buf.String())
}
