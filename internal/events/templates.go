package events

import "fmt"

const iconJoined = "person.crop.circle.badge.plus"

// weights is the cumulative draw table for random events.
var weights = []struct {
	category Category
	p        float64
}{
	{CategoryFoundItem, 0.30},
	{CategoryLevelUp, 0.15},
	{CategoryCompletedQuest, 0.20},
	{CategoryUnlockedCosmetic, 0.15},
	{CategoryAchievement, 0.10},
	{CategoryJoined, 0.05},
	{CategoryLeft, 0.05},
}

var (
	quests       = []string{"City Explorer", "Bird Watcher", "Mischief Maker", "Feather Collector"}
	hats         = []string{"Top Hat", "Crown", "Beret", "Wizard Hat"}
	achievements = []string{"Master Explorer", "Shiny Collector", "Bird Chaser", "Troublemaker", "Hat Enthusiast"}
)

// categoryFor walks the cumulative table. Rounding past the last bucket falls
// back to the last entry.
func categoryFor(draw float64) Category {
	cum := 0.0
	for _, w := range weights {
		cum += w.p
		if draw <= cum {
			return w.category
		}
	}
	return weights[len(weights)-1].category
}

func joinedMessage(name string) string {
	return fmt.Sprintf("%s joined the game!", name)
}

// compose renders the text, icon and color of a random event. Caller holds mu.
func (n *Notifier) compose(category Category, name string) (message, icon, color string) {
	switch category {
	case CategoryFoundItem:
		count := 1 + n.rng.IntN(5)
		noun := "shiny"
		if count > 1 {
			noun = "shinies"
		}
		return fmt.Sprintf("%s found %d %s!", name, count, noun), "sparkles", "yellow"
	case CategoryLevelUp:
		return fmt.Sprintf("%s reached Level %d!", name, 2+n.rng.IntN(14)), "star.fill", "yellow"
	case CategoryCompletedQuest:
		q := quests[n.rng.IntN(len(quests))]
		return fmt.Sprintf("%s completed '%s'!", name, q), "checkmark.circle.fill", "green"
	case CategoryUnlockedCosmetic:
		h := hats[n.rng.IntN(len(hats))]
		return fmt.Sprintf("%s unlocked the %s!", name, h), "crown.fill", "purple"
	case CategoryAchievement:
		a := achievements[n.rng.IntN(len(achievements))]
		return fmt.Sprintf("%s earned '%s'!", name, a), "trophy.fill", "orange"
	case CategoryLeft:
		return fmt.Sprintf("%s left the game", name), "person.crop.circle.badge.minus", "gray"
	default:
		return joinedMessage(name), iconJoined, "green"
	}
}

var stockStyle = map[Category][2]string{
	CategoryJoined:           {iconJoined, "green"},
	CategoryLeft:             {"person.crop.circle.badge.minus", "gray"},
	CategoryLevelUp:          {"star.fill", "yellow"},
	CategoryFoundItem:        {"sparkles", "yellow"},
	CategoryCompletedQuest:   {"checkmark.circle.fill", "green"},
	CategoryUnlockedCosmetic: {"crown.fill", "purple"},
	CategoryAchievement:      {"trophy.fill", "orange"},
}

// Stock returns fixed wording plus the category's icon and color, for events
// posted by hand rather than drawn at random.
func Stock(category Category, subject string) (message, icon, color string) {
	style, ok := stockStyle[category]
	if !ok {
		style = [2]string{"bell.fill", "blue"}
	}
	switch category {
	case CategoryJoined:
		message = joinedMessage(subject)
	case CategoryLeft:
		message = fmt.Sprintf("%s left the game", subject)
	case CategoryLevelUp:
		message = fmt.Sprintf("%s leveled up!", subject)
	case CategoryFoundItem:
		message = fmt.Sprintf("%s found a shiny!", subject)
	case CategoryCompletedQuest:
		message = fmt.Sprintf("%s completed a quest!", subject)
	case CategoryUnlockedCosmetic:
		message = fmt.Sprintf("%s unlocked a new hat!", subject)
	case CategoryAchievement:
		message = fmt.Sprintf("%s earned an achievement!", subject)
	default:
		message = subject
	}
	return message, style[0], style[1]
}
