package model

// Prompt identifiers recorded in the processing log so an auditor can tell
// which template produced a given response.
const (
	PromptTextExtract       = "trade_extract_text_v2"
	PromptScreenshotExtract = "trade_extract_screenshot_v2"
	PromptVoiceExtract      = "trade_extract_voice_v2"
	PromptStrictRetry       = "trade_extract_strict_v2"
)

const jsonSchemaBlock = `Return ONLY a JSON object with exactly these keys:
{
  "instrument": string or null,
  "direction": "LONG" or "SHORT" or null,
  "entry_price": number or null,
  "exit_price": number or null,
  "stop_loss": number or null,
  "take_profit": number or null,
  "result": "WIN" or "LOSS" or "BREAK_EVEN" or null,
  "r_multiple": number or null,
  "emotion": string or null,
  "mistakes": array of strings or null,
  "notes": string or null,
  "confidence": number between 0 and 1
}
Use null for anything not present in the input. Never guess prices.
"confidence" is your overall certainty that the extracted fields are correct.`

// TextPrompt extracts trade fields from a typed trade description.
const TextPrompt = `You are a trading journal assistant. Extract the trade details
from the trader's message below.

` + jsonSchemaBlock

// ScreenshotPrompt extracts trade fields from a broker app or chart screenshot.
const ScreenshotPrompt = `You are a trading journal assistant. The image is a
screenshot from a broker app or charting platform showing a trade. Read the
visible order details and extract the trade.

` + jsonSchemaBlock

// VoicePrompt extracts trade fields from a transcribed voice note. Voice notes
// often carry how the trader felt and what went wrong, so pay attention to
// emotion and mistakes.
const VoicePrompt = `You are a trading journal assistant. The text below is a
transcript of a trader's voice note about a trade they took. Extract the trade
details, including how they felt ("emotion") and any mistakes they mention.

` + jsonSchemaBlock

// StrictRetryPrompt is the single re-prompt used after a malformed response.
const StrictRetryPrompt = `Your previous reply was not valid JSON. Respond again
with ONLY the JSON object, no markdown fences, no commentary, no text before or
after the object.

` + jsonSchemaBlock

// PromptFor maps an input kind to its template and identifier.
func PromptFor(kind string) (id, prompt string) {
	switch kind {
	case "image":
		return PromptScreenshotExtract, ScreenshotPrompt
	case "audio":
		return PromptVoiceExtract, VoicePrompt
	default:
		return PromptTextExtract, TextPrompt
	}
}
