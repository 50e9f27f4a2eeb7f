package ocr

import "strings"

// ExtractPrompt is sent together with every uploaded screenshot.
const ExtractPrompt = `Transcribe ALL text visible in this screenshot exactly as written.
Keep the original line breaks, numbering, code, formulas and answer options.
Do not translate, summarize, correct or comment. Do not add anything that is not on the image.
Output only the transcribed text.`

// AnswerSystemPrompt fixes the tone of the answer service.
const AnswerSystemPrompt = `You answer questions taken from screenshots.
Reply with the answer only: short and direct, no explanation, no restating of the question.
For multiple-choice questions give the letter or number of the correct option and its text.
If the text contains several questions, answer each on its own line in the order they appear.`

const answerUserPrefix = "Text extracted from the screenshots:\n\n"

// AnswerUserMessage embeds the combined transcription into the user turn.
func AnswerUserMessage(combined string) string {
	return answerUserPrefix + strings.TrimSpace(combined)
}
