package ai

import (
	"fmt"

	"github.com/skribas/audio-scribe/internal/pipeline"
)

const detectPrompt = `Listen to the recording and answer with the name of the spoken language only, ` +
	`a single word, nothing else. If you cannot tell, answer "indeterminate".`

const transcribePrompt = `Transcribe the recording verbatim. Keep filler words. ` +
	`Mark passages you cannot make out as [inaudible]. Output plain text only, no commentary.`

func cleanPrompt(srcLang, dstLang string) string {
	return fmt.Sprintf(`Below is a raw speech transcript in %s. Correct obvious recognition errors, `+
		`add punctuation and paragraph breaks, and render the result in %s as simple HTML `+
		`(<p>, <br>, <strong> only). Do not summarize, do not add commentary.`, srcLang, dstLang)
}

var contentTypeHints = map[pipeline.ContentType]string{
	pipeline.ContentMeeting:   "a business meeting",
	pipeline.ContentSermon:    "a sermon",
	pipeline.ContentInterview: "an interview",
	pipeline.ContentLecture:   "a lecture",
	pipeline.ContentNote:      "a personal voice note",
}

var outputFormatHints = map[pipeline.OutputFormat]string{
	pipeline.FormatReport:        "a formal report",
	pipeline.FormatArticle:       "an article",
	pipeline.FormatKeyPoints:     "a bullet list of key points",
	pipeline.FormatActionItems:   "a list of action items with owners where mentioned",
	pipeline.FormatMeetingReport: "meeting minutes with decisions and follow-ups",
}

func refinePrompt(contentType pipeline.ContentType, outputFormat pipeline.OutputFormat, lang string) string {
	return fmt.Sprintf(`Below is a raw transcript of %s. Rewrite it as %s in %s. `+
		`Use simple HTML for structure. Stay faithful to the content, invent nothing.`,
		contentTypeHints[contentType], outputFormatHints[outputFormat], lang)
}
