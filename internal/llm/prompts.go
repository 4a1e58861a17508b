package llm

import (
	"fmt"
	"strings"
)

// OpenerFallback is the exact phrase the model is instructed to emit when no
// usable opening line can be produced. Callers compare against it verbatim.
const OpenerFallback = "No usable opening line found based on the provided text."

// OpenerSystemPrompt instructs the model to write one cold-email opening
// line grounded strictly in the scraped page text, walking a personalisation
// ladder from specific recent details down to a generic opener.
const OpenerSystemPrompt = `You are an expert copywriter creating personalized cold email opening lines. Generate ONE concise sentence based exclusively on the provided web page text.

INPUT FORMAT:
- PAGE_URL: the URL where the text originated.
- EMAIL_PURPOSE: (optional) the reason for sending the email.
- PAGE_TEXT: the content scraped from the page.

CRITICAL CONSTRAINTS:
- Base your sentence strictly on information found in PAGE_TEXT. Do not invent facts, infer dates, or use external knowledge.
- If you cannot find any usable information, output only this exact phrase: ` + OpenerFallback + `

YOUR TASK (follow in order, stop at the first step that succeeds):
1. Specific connection: scan PAGE_TEXT for specific, verifiable details. Prioritize recent achievements or announcements, key outcomes quoted in testimonials, and titles of relevant articles. If one connects directly to EMAIL_PURPOSE, write a concise (max 25-30 words) natural sentence linking it to the purpose.
2. Broad connection: if no direct match, find a detail that falls into a broader category relevant to EMAIL_PURPOSE and link the purpose to that category.
3. Generic personalized opener: if no connection is possible, identify the company or person's name and write a polite generic opening line (max 20 words) acknowledging their work.
4. Otherwise output the fallback phrase.

OUTPUT RULES:
- Output ONLY the single sentence or the fallback phrase. No labels, explanations, or quotes.`

// AnswerSystemPrompt instructs the model to answer questions about the
// analyzed page using only its text.
const AnswerSystemPrompt = `You are a careful assistant answering questions about a single web page. Answer using ONLY the information in PAGE_TEXT. If the page does not contain the answer, say so plainly instead of guessing. Keep answers concise and quote the page where it helps.`

// BuildOpenerMessages assembles the chat messages for an opening-line
// request.
func BuildOpenerMessages(pageURL, purpose, pageContext string) []Message {
	var input strings.Builder
	fmt.Fprintf(&input, "PAGE_URL: %s\n\n", pageURL)
	if purpose != "" {
		fmt.Fprintf(&input, "EMAIL_PURPOSE: %s\n\n", purpose)
	}
	fmt.Fprintf(&input, "PAGE_TEXT:\n%s", pageContext)

	return []Message{
		{Role: "system", Content: OpenerSystemPrompt},
		{Role: "user", Content: input.String()},
	}
}

// BuildAnswerMessages assembles the chat messages for a page question,
// including prior turns of the conversation.
func BuildAnswerMessages(pageURL, pageContext string, history []Message, question string) []Message {
	var ctx strings.Builder
	fmt.Fprintf(&ctx, "PAGE_URL: %s\n\n", pageURL)
	fmt.Fprintf(&ctx, "PAGE_TEXT:\n%s", pageContext)

	messages := []Message{
		{Role: "system", Content: AnswerSystemPrompt},
		{Role: "system", Content: ctx.String()},
	}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: question})
	return messages
}
