package models

// BatchItem is one URL to refresh, tagged with its platform.
type BatchItem struct {
	Platform string `json:"platform" binding:"required"`
	URL      string `json:"url" binding:"required,url"`
}

// BatchRequest is the payload for POST /api/v1/batch.
type BatchRequest struct {
	Items         []BatchItem `json:"items" binding:"required,min=1,max=500,dive"`
	DownloadMedia bool        `json:"download_media,omitempty"`
	WebhookURL    string      `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchResponse is the immediate response for POST /api/v1/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Live      int         `json:"live"`
	Offline   int         `json:"offline"`
	Failed    int         `json:"failed"`
	Results   []*Envelope `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch refresh.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "partial", "failed"
	Total     int
	Completed int
	Live      int
	Offline   int
	Failed    int
	Results   []*Envelope
	CreatedAt int64 // unix timestamp
}
