package models

// Member is a guild member as seen by the chat platform.
type Member struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	RoleIDs  []int64 `json:"role_ids"`
}

// HasAnyRole returns the first of ids the member holds.
func (m *Member) HasAnyRole(ids []int64) (int64, bool) {
	for _, want := range ids {
		for _, have := range m.RoleIDs {
			if have == want {
				return want, true
			}
		}
	}
	return 0, false
}

// Message is a published chat message handle.
type Message struct {
	ID        int64  `json:"id"`
	ChannelID int64  `json:"channel_id"`
	Content   string `json:"content"`
}

// Score is a member's reputation as reported by the external service.
type Score struct {
	Level     int64 `json:"level"`
	WeeklyExp int64 `json:"weeklyExp"`
}
