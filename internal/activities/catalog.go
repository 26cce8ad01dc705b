// Package activities plans a doll's day and turns an activity into a
// rendered video.
package activities

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
)

type Slot string

const (
	Morning   Slot = "morning"
	Afternoon Slot = "afternoon"
	Evening   Slot = "evening"
	Anytime   Slot = "anytime"
)

func (s Slot) order() int {
	switch s {
	case Morning:
		return 0
	case Afternoon:
		return 1
	case Evening:
		return 2
	}
	return 3
}

// Template is an activity with a {dollName} placeholder in its description.
type Template struct {
	ID          string
	Title       string
	Description string
	Time        string
	Emoji       string
	Slot        Slot
}

type Activity struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Time        string `json:"time"`
	Emoji       string `json:"emoji"`
	Type        Slot   `json:"type"`
}

var templates = []Template{
	{"1", "Morning Stretch", "{dollName} starts the day with gentle stretches and a big yawn!", "8:00 AM", "🌅", Morning},
	{"2", "Tea Time", "{dollName} enjoys a cozy cup of tea and some cookies", "10:30 AM", "☕", Morning},
	{"3", "Garden Play", "{dollName} dances among the flowers and chases butterflies", "2:00 PM", "🌸", Afternoon},
	{"4", "Reading Adventure", "{dollName} gets lost in a magical storybook", "3:30 PM", "📚", Afternoon},
	{"5", "Art Creation", "{dollName} paints colorful masterpieces with tiny brushes", "4:00 PM", "🎨", Afternoon},
	{"6", "Sunset Watch", "{dollName} watches the beautiful sunset from the window", "6:30 PM", "🌇", Evening},
	{"7", "Bedtime Story", "{dollName} listens to gentle bedtime stories", "8:00 PM", "📖", Evening},
	{"8", "Dream Preparation", "{dollName} gets ready for sweet dreams and adventures", "9:00 PM", "💤", Evening},
	{"9", "Music Dance", "{dollName} dances to favorite melodies and hums along", "Anytime", "🎵", Anytime},
	{"10", "Friend Visit", "{dollName} has tea parties with other doll friends", "Anytime", "🎀", Anytime},
	{"11", "Bubble Play", "{dollName} chases magical soap bubbles around the room", "Anytime", "🫧", Anytime},
	{"12", "Snack Time", "{dollName} enjoys tiny treats and shares with stuffed friends", "11:00 AM", "🍪", Morning},
}

// Templates returns a copy of the catalog.
func Templates() []Template {
	return slices.Clone(templates)
}

func Find(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

func (t Template) For(dollName string) Activity {
	return Activity{
		ID:          t.ID,
		Title:       t.Title,
		Description: strings.ReplaceAll(t.Description, "{dollName}", dollName),
		Time:        t.Time,
		Emoji:       t.Emoji,
		Type:        t.Slot,
	}
}

const (
	minPerDay = 3
	maxPerDay = 5
)

// Planner draws a day's activities. It is safe for concurrent use.
type Planner struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPlanner(seed1, seed2 uint64) *Planner {
	return &Planner{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

// Today picks three to five distinct activities ordered by time of day.
func (p *Planner) Today(dollName string) []Activity {
	p.mu.Lock()
	n := minPerDay + p.rnd.IntN(maxPerDay-minPerDay+1)
	perm := p.rnd.Perm(len(templates))
	p.mu.Unlock()

	day := make([]Activity, 0, n)
	for _, i := range perm[:n] {
		day = append(day, templates[i].For(dollName))
	}
	slices.SortStableFunc(day, func(a, b Activity) int {
		return a.Type.order() - b.Type.order()
	})
	return day
}
