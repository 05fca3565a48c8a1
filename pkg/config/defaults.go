package config

// DefaultReviewConfig returns the built-in review queue defaults.
func DefaultReviewConfig() *ReviewConfig {
	return &ReviewConfig{SLAMinutes: 240}
}

// DefaultOutputConfig returns the built-in artifact output defaults.
func DefaultOutputConfig() *OutputConfig {
	return &OutputConfig{Root: "outputs"}
}

// DefaultOCRConfig returns the built-in Textract defaults.
func DefaultOCRConfig() *OCRConfig {
	return &OCRConfig{
		Region:       "eu-west-2",
		PollInterval: "1s",
	}
}

// DefaultLLMConfig returns the built-in structured-extractor defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Model:     "gemini-2.0-flash",
		APIKeyEnv: "GEMINI_API_KEY",
	}
}

// Default returns a fully populated configuration with built-in values,
// used when no config directory is supplied (and by tests).
func Default() *Config {
	return &Config{
		Workflow:   DefaultWorkflowConfig(),
		Validation: DefaultValidationConfig(),
		SLA:        DefaultSLAConfig(),
		Queue:      DefaultQueueConfig(),
		Review:     DefaultReviewConfig(),
		Output:     DefaultOutputConfig(),
		OCR:        DefaultOCRConfig(),
		LLM:        DefaultLLMConfig(),
	}
}
