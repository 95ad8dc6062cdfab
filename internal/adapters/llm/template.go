package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
)

var postTemplates = []string{
	"Just opened a booster pack and got an amazing holographic %s! The artwork is absolutely stunning 🎨 #%s #CardPulls #TradeUp",
	"Working on a new %s deck strategy. The synergy between cards is incredible! 🃏 #%s #DeckBuilding #TradeUp",
	"Interesting price trends for %s cards this week. Vintage cards continue to show strong performance 📈 #%s #MarketAnalysis #TradeUp",
	"Excited for the upcoming Pokemon TCG tournament! My %s deck is ready 🏆 #%s #Tournament #TradeUp",
	"Added a beautiful %s card to my collection today! The condition is perfect 💎 #%s #Collecting #TradeUp",
	"That feeling when you pull a rare %s from a pack! Nothing beats the excitement 🔥 #%s #LuckyPull #TradeUp",
	"The market for graded %s cards is evolving rapidly. PSA 10s are commanding premium prices! 💰 #%s #Investment #TradeUp",
	"Testing out a new %s deck combo today. Theory crafting is half the fun! 🧠 #%s #DeckTech #TradeUp",
	"Found a gem in today's pack opening - this %s is going straight to the collection! ✨ #%s #NewCard #TradeUp",
	"Vintage %s cards never go out of style. The nostalgia is real! 🕰️ #%s #Vintage #TradeUp",
}

var pokemonNames = []string{
	"Charizard", "Pikachu", "Blastoise", "Venusaur", "Mewtwo", "Mew",
	"Lugia", "Ho-Oh", "Rayquaza", "Dragonite", "Gyarados", "Snorlax",
	"Eevee", "Umbreon", "Espeon", "Vaporeon", "Jolteon", "Flareon",
	"Alakazam", "Gengar", "Machamp", "Lapras", "Articuno", "Zapdos",
}

var templateHashtags = []string{
	"PokemonTCG", "TCG", "Pokemon", "Cards", "Collecting", "Gaming",
	"Nostalgia", "Vintage", "Competitive", "Fun",
}

var replyTemplates = []string{
	"Nice one! The %s market has been really interesting lately. Trade safely on TradeUp!",
	"Love seeing this! %s cards always bring back memories. Trade safely on TradeUp!",
	"Great pull! %s holos in good condition have been holding value well. Trade safely on TradeUp!",
	"Awesome! The community around %s collecting keeps growing. Trade safely on TradeUp!",
}

// TemplateGenerator produces content from canned templates. It is the
// fallback when no LLM is configured, and guarantees unique combinations
// within a single process run.
type TemplateGenerator struct {
	randInt func(n int) int

	mu   sync.Mutex
	used map[string]bool
}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{
		randInt: rand.IntN,
		used:    make(map[string]bool),
	}
}

func (g *TemplateGenerator) GeneratePost(_ context.Context, topic string) (domain.GeneratedPost, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var content, pokemon string
	for attempt := 0; attempt < 50; attempt++ {
		tmpl := postTemplates[g.randInt(len(postTemplates))]
		pokemon = pokemonNames[g.randInt(len(pokemonNames))]
		tag := templateHashtags[g.randInt(len(templateHashtags))]

		key := fmt.Sprintf("%s-%s-%s", tmpl, pokemon, tag)
		if g.used[key] && attempt < 49 {
			continue
		}
		g.used[key] = true
		content = fmt.Sprintf(tmpl, pokemon, tag)
		break
	}

	var hashtags []string
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		hashtags = append(hashtags, "#"+m[1])
	}

	t := topic
	if t == "" {
		t = pokemon
	}
	return domain.GeneratedPost{
		Content:         content,
		Topic:           t,
		Hashtags:        hashtags,
		MentionsTradeUp: true,
	}, nil
}

func (g *TemplateGenerator) GenerateReply(_ context.Context, tweet domain.SourceTweet) (string, error) {
	pokemon := "Pokémon"
	lower := strings.ToLower(tweet.Text)
	for _, name := range pokemonNames {
		if strings.Contains(lower, strings.ToLower(name)) {
			pokemon = name
			break
		}
	}

	g.mu.Lock()
	tmpl := replyTemplates[g.randInt(len(replyTemplates))]
	g.mu.Unlock()
	return fmt.Sprintf(tmpl, pokemon), nil
}

var _ ports.Generator = (*TemplateGenerator)(nil)
