package domain

// Setting is an operator-tunable key/value pair.
type Setting struct {
	Key   string `json:"key" gorm:"primaryKey"`
	Value string `json:"value" gorm:"not null"`
}

func (Setting) TableName() string {
	return "settings"
}

const (
	KeyPollInterval  = "poll_interval"
	KeyOllamaBaseURL = "ollama_base_url"
	KeyOllamaModel   = "ollama_model"
)
