package queue

// Typed job payloads, one per job type, so processor dispatch stays
// exhaustive instead of probing loose maps.

// CampaignJob asks the campaigns queue to dispatch one campaign
type CampaignJob struct {
	CampaignID uint `json:"campaign_id"`
	UserID     uint `json:"user_id"`
}

// SimplifiedPublicJob asks for materialization of a simplified public
type SimplifiedPublicJob struct {
	PublicID uint `json:"public_id"`
	UserID   uint `json:"user_id"`
}

// CustomPublicJob asks for materialization of a file-derived public
type CustomPublicJob struct {
	PublicID uint `json:"public_id"`
	UserID   uint `json:"user_id"`
}

// MessageJob carries one rendered outbound message
type MessageJob struct {
	MessageID  uint   `json:"message_id"`
	CampaignID uint   `json:"campaign_id"`
	UserID     uint   `json:"user_id"`
	NumberID   uint   `json:"number_id"`
	Phone      string `json:"phone"`
	Body       string `json:"body"`
}
