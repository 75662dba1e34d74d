package model

// Dialogue is one line of page narration: the unit of TTS work. The ID is
// stable within its page and keys the per-line audio artifact.
type Dialogue struct {
	ID      string  `json:"id"`
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Emotion Emotion `json:"emotion"`
	Speed   Speed   `json:"speed"`
}

// Script is the ordered dialogue list for one page. Dialogue order is the
// presentation order and drives page-audio assembly.
type Script struct {
	Page      int        `json:"page"`
	Dialogues []Dialogue `json:"dialogues"`
}

// DialogueIDs returns the ids of all dialogues in presentation order.
func (s *Script) DialogueIDs() []string {
	ids := make([]string, 0, len(s.Dialogues))
	for _, d := range s.Dialogues {
		ids = append(ids, d.ID)
	}
	return ids
}

// Find returns the dialogue with the given id, or nil.
func (s *Script) Find(dialogueID string) *Dialogue {
	for i := range s.Dialogues {
		if s.Dialogues[i].ID == dialogueID {
			return &s.Dialogues[i]
		}
	}
	return nil
}
