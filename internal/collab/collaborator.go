package collab

// Identity is the stable identity a participant joins a document with,
// supplied by the authentication layer.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"user_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Collaborator is a participant currently reported present on a document.
// The set is rebuilt wholesale on every presence sync; nothing here is
// persisted.
type Collaborator struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"user_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	CursorPosition int    `json:"cursor_position"`
	IsEditing      bool   `json:"is_editing"`
	Color          string `json:"color"`
}

// collaboratorPalette is the fixed set of display colors. Participants beyond
// the palette size share colors; assignment follows presence order, so a
// reshuffled sync may recolor participants.
var collaboratorPalette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
	"#F7DC6F",
}

func colorForIndex(index int) string {
	return collaboratorPalette[index%len(collaboratorPalette)]
}

// PaletteSize reports how many distinct collaborator colors exist.
func PaletteSize() int {
	return len(collaboratorPalette)
}
