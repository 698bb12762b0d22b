package service

// trimToMaxExchanges keeps the last maxExchanges complete exchanges (a user
// message answered by an assistant message) plus whatever follows them.
func trimToMaxExchanges(messages []Message, maxExchanges int) []Message {
	if maxExchanges <= 0 {
		return messages
	}

	exchanges := 0
	for i := len(messages) - 2; i >= 0; i-- {
		if messages[i].Role == RoleUser && messages[i+1].Role == RoleAssistant {
			exchanges++
			if exchanges == maxExchanges {
				return messages[i:]
			}
		}
	}
	return messages
}
