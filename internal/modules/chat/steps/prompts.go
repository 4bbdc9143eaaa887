package steps

func promptConversationContext(chatTitle string, transcript string) (system string, user string) {
	system = `You analyze chat transcripts and produce a compact conversation context.
Return ONLY a JSON object with keys "summary", "key_topics", "relationship".
"summary" is 1-3 sentences. "key_topics" is up to 8 short phrases.
"relationship" is exactly one of: business, personal, support, unknown.`
	user = "Chat title: " + chatTitle + "\n\n" +
		"Transcript (oldest first):\n" + transcript + "\n\n" +
		"Task: summarize what this conversation is about, list the key topics, and classify the relationship between the participants."
	return system, user
}
