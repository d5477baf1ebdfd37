package chat

// EstimateTokens approximates the token count of text without a tokenizer.
// ASCII runes weigh a quarter token each; every other rune (CJK, Cyrillic, emoji)
// weighs a full token. The sum is rounded up.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
			continue
		}
		weight += 4
	}
	return (weight + 3) / 4
}
