package models

// NewCard is the input for creating a card. Zero width/height and an empty
// type take the defaults.
type NewCard struct {
	Type    CardType `json:"type,omitempty"`
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Width   float64  `json:"width,omitempty"`
	Height  float64  `json:"height,omitempty"`
	Color   string   `json:"color,omitempty"`
}

// Build materialises the card under id, applying defaults and size floors.
func (n NewCard) Build(id string, minW, minH float64) Card {
	c := Card{
		ID:      id,
		Type:    n.Type,
		Title:   n.Title,
		Content: n.Content,
		X:       n.X,
		Y:       n.Y,
		Width:   n.Width,
		Height:  n.Height,
		Color:   n.Color,
	}
	if c.Type == "" {
		c.Type = CardNote
	}
	if c.Width == 0 {
		c.Width = DefaultCardWidth
	}
	if c.Height == 0 {
		c.Height = DefaultCardHeight
	}
	c.ClampSize(minW, minH)
	return c
}

// NewConnection is the input for creating a connection.
type NewConnection struct {
	FromID string         `json:"fromId"`
	ToID   string         `json:"toId"`
	Type   ConnectionType `json:"type,omitempty"`
	Label  string         `json:"label,omitempty"`
}

// Build materialises the connection under id.
func (n NewConnection) Build(id string) Connection {
	t := n.Type
	if t == "" {
		t = ConnectionSimple
	}
	return Connection{ID: id, FromID: n.FromID, ToID: n.ToID, Type: t, Label: n.Label}
}

// CardPatch is a partial card update; nil fields are left untouched.
type CardPatch struct {
	Type    *CardType `json:"type,omitempty"`
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	X       *float64  `json:"x,omitempty"`
	Y       *float64  `json:"y,omitempty"`
	Width   *float64  `json:"width,omitempty"`
	Height  *float64  `json:"height,omitempty"`
	Color   *string   `json:"color,omitempty"`
}

// Apply writes the non-nil fields onto c.
func (p CardPatch) Apply(c *Card) {
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.X != nil {
		c.X = *p.X
	}
	if p.Y != nil {
		c.Y = *p.Y
	}
	if p.Width != nil {
		c.Width = *p.Width
	}
	if p.Height != nil {
		c.Height = *p.Height
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
}

// Geometry returns a patch carrying only c's position and size.
func Geometry(c Card) CardPatch {
	return CardPatch{X: Ptr(c.X), Y: Ptr(c.Y), Width: Ptr(c.Width), Height: Ptr(c.Height)}
}

// ConnectionPatch is a partial connection update.
type ConnectionPatch struct {
	Type  *ConnectionType `json:"type,omitempty"`
	Label *string         `json:"label,omitempty"`
}

// Apply writes the non-nil fields onto c.
func (p ConnectionPatch) Apply(c *Connection) {
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Label != nil {
		c.Label = *p.Label
	}
}

// CanvasPatch updates canvas metadata.
type CanvasPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
