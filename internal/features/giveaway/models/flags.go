package models

// Flags are per-giveaway modifiers set at creation time.
type Flags struct {
	// PingOnStart posts the guild ping role when the giveaway is published.
	PingOnStart bool `json:"ping_on_start,omitempty"`
	// StartMessage is an extra message posted alongside the announcement.
	StartMessage string `json:"start_message,omitempty"`
	// ThankDonor posts the guild thank-you template on start.
	ThankDonor bool `json:"thank_donor,omitempty"`
	// DonorID credits the prize to someone other than the host.
	DonorID int64 `json:"donor_id,omitempty"`
	// NoDonorEntry rejects the donor (or host) from entering.
	NoDonorEntry bool `json:"no_donor_entry,omitempty"`
	// NoMulti disables multiplier expansion of the entrant pool.
	NoMulti bool `json:"no_multi,omitempty"`
	// NoDuplicateWinners skips draws of someone already in the winner list.
	NoDuplicateWinners bool `json:"no_duplicate_winners,omitempty"`
	// MessageCountOverride replaces the rule set's minimum message count.
	MessageCountOverride int64 `json:"message_count_override,omitempty"`
	// SuppressDefaultRules ignores the guild's default rule set.
	SuppressDefaultRules bool `json:"suppress_default_rules,omitempty"`
}

// DonorOrHost returns the donor id, falling back to the host.
func (f Flags) DonorOrHost(hostID int64) int64 {
	if f.DonorID != 0 {
		return f.DonorID
	}
	return hostID
}
