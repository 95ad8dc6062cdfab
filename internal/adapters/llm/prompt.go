package llm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tradeup/x-engager/internal/core/domain"
)

// postPrompt asks for exactly one post in the POST/CONTENT/TOPIC framing so
// parsing stays line-oriented.
func postPrompt(topic string) string {
	return fmt.Sprintf(`You are the social media manager for TradeUp, a platform for trading Pokémon cards.

Generate 1 highly engaging Twitter post about: %s

The post should:
1. Be original and attention-grabbing
2. Include interesting facts, statistics, or insights about Pokémon cards
3. Naturally promote the TradeUp platform without being overly promotional
4. Include relevant hashtags for discoverability
5. Be between 200-280 characters (Twitter limit)
6. Use authentic community terminology and voice

Format your response exactly like this:

POST:
CONTENT: [the full tweet text including hashtags]
TOPIC: [main topic of the post]
`, topic)
}

func replyPrompt(tweet domain.SourceTweet) string {
	return fmt.Sprintf(`You are an AI assistant for TradeUp, a platform for trading Pokémon cards.

TWEET: %q

Task 1: Is this tweet related to Pokémon cards or the Pokémon Trading Card Game (TCG)? Answer YES or NO.

Task 2: If you answered YES, write a friendly reply tweet that:
1. Reacts naturally to the tweet's content
2. Adds a fun fact or mini price insight if relevant
3. Ends with "Trade safely on TradeUp!"

If you answered NO, just write "Not Pokémon card related."

Format your response exactly like this:
POKEMON_RELATED: [YES/NO]
REPLY: [Your reply text here]
`, tweet.Text)
}

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// parsePost extracts the first POST section from a completion. Missing
// TOPIC falls back to the requested topic.
func parsePost(response, topic string) (domain.GeneratedPost, error) {
	_, section, found := strings.Cut(response, "POST:")
	if !found {
		section = response
	}

	_, rest, found := strings.Cut(section, "CONTENT:")
	if !found {
		return domain.GeneratedPost{}, fmt.Errorf("no CONTENT section in completion")
	}
	content, topicPart, _ := strings.Cut(rest, "TOPIC:")
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.GeneratedPost{}, fmt.Errorf("empty CONTENT section in completion")
	}

	parsedTopic := strings.TrimSpace(strings.SplitN(topicPart, "\n", 2)[0])
	if parsedTopic == "" {
		parsedTopic = topic
	}

	var hashtags []string
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		hashtags = append(hashtags, "#"+m[1])
	}

	return domain.GeneratedPost{
		Content:         content,
		Topic:           parsedTopic,
		Hashtags:        hashtags,
		MentionsTradeUp: strings.Contains(strings.ToLower(content), "tradeup"),
	}, nil
}

var replyPattern = regexp.MustCompile(`(?s)REPLY:\s*(.*?)\s*(?:POKEMON_RELATED:|$)`)

// parseReply extracts the reply text. Tweets the model marks as unrelated
// yield an empty reply and ok=false.
func parseReply(response string) (string, bool) {
	if strings.Contains(response, "POKEMON_RELATED: NO") {
		return "", false
	}
	m := replyPattern.FindStringSubmatch(response)
	if m == nil {
		return "", false
	}
	reply := strings.TrimSpace(m[1])
	if reply == "" || strings.EqualFold(reply, "Not Pokémon card related.") {
		return "", false
	}
	return reply, true
}
