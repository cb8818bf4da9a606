package panel

// View identifiers.
const (
	ViewMain        = "main"
	ViewWebhooks    = "webhooks"
	ViewFieldEditor = "field-editor"
)

// DefaultRootLabel is the first breadcrumb entry of every session.
const DefaultRootLabel = "Configuration"

// Category is a top-level configuration section.
type Category struct {
	Key         string
	Label       string
	Emoji       string
	Description string
	SubViews    []string
}

// SubView is a transient screen below one or more categories.
// Empty Parents means it can be opened from any category.
type SubView struct {
	Key     string
	Label   string
	Parents []string
}

// Catalog is the fixed set of views the panel can show.
type Catalog struct {
	categories []Category
	byKey      map[string]Category
	subViews   map[string]SubView
	labels     map[string]string
}

// NewCatalog indexes categories and sub-views. Later entries with a
// duplicate key replace earlier ones.
func NewCatalog(categories []Category, subViews []SubView) *Catalog {
	c := &Catalog{
		byKey:    make(map[string]Category, len(categories)),
		subViews: make(map[string]SubView, len(subViews)),
		labels:   make(map[string]string, len(categories)+len(subViews)),
	}
	for _, cat := range categories {
		if _, dup := c.byKey[cat.Key]; !dup {
			c.categories = append(c.categories, cat)
		}
		c.byKey[cat.Key] = cat
		c.labels[cat.Label] = cat.Key
	}
	for _, sv := range subViews {
		c.subViews[sv.Key] = sv
		c.labels[sv.Label] = sv.Key
	}
	return c
}

// DefaultCatalog returns the categories shown on the main panel.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Category{
		{Key: "general", Label: "General", Emoji: "⚙️", Description: "Prefix, language and bot-wide settings"},
		{Key: "entry", Label: "Entry", Emoji: "👋", Description: "Welcome messages, auto roles and verification"},
		{Key: "logging", Label: "Logging", Emoji: "📜", Description: "Moderation and event log channels", SubViews: []string{ViewWebhooks}},
		{Key: "economy", Label: "Economy", Emoji: "💰", Description: "Currency, daily rewards and shop"},
		{Key: "games", Label: "Games", Emoji: "🎮", Description: "Mini-game channels and cooldowns"},
		{Key: "tickets", Label: "Tickets", Emoji: "🎫", Description: "Ticket category, support roles and transcripts"},
		{Key: "levels", Label: "Levels", Emoji: "📈", Description: "XP rates and level-up announcements"},
		{Key: "modmail", Label: "Modmail", Emoji: "📬", Description: "Modmail inbox channel and staff role"},
		{Key: "confession", Label: "Confession", Emoji: "🤫", Description: "Anonymous confession channel and review"},
	}, []SubView{
		{Key: ViewWebhooks, Label: "Webhooks", Parents: []string{"logging"}},
		{Key: ViewFieldEditor, Label: "Edit Field"},
	})
}

// Categories returns the categories in display order.
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

func (c *Catalog) Category(key string) (Category, bool) {
	cat, ok := c.byKey[key]
	return cat, ok
}

func (c *Catalog) IsCategory(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

func (c *Catalog) SubView(key string) (SubView, bool) {
	sv, ok := c.subViews[key]
	return sv, ok
}

// Label returns the breadcrumb label for a view key.
func (c *Catalog) Label(key string) string {
	if cat, ok := c.byKey[key]; ok {
		return cat.Label
	}
	if sv, ok := c.subViews[key]; ok {
		return sv.Label
	}
	return key
}

// LabelToCategory resolves a breadcrumb label back to its view key.
// Unrecognized labels resolve to the main view.
func (c *Catalog) LabelToCategory(label string) string {
	if key, ok := c.labels[label]; ok {
		return key
	}
	return ViewMain
}

// Reachable reports whether target can be opened while current is shown.
// Categories and main are reachable from anywhere; sub-views only from
// their parents (or from themselves).
func (c *Catalog) Reachable(current, target string) (bool, error) {
	if target == ViewMain || c.IsCategory(target) {
		return true, nil
	}
	sv, ok := c.subViews[target]
	if !ok {
		return false, ErrUnknownView
	}
	if current == target {
		return true, nil
	}
	if len(sv.Parents) == 0 {
		return c.IsCategory(current), nil
	}
	for _, p := range sv.Parents {
		if p == current {
			return true, nil
		}
	}
	return false, nil
}
