package httpapi

import "github.com/MimeLyc/video-summarizer/internal/config"

const redactedAPIKey = "********"

type settingsRequest struct {
	LLMAPIURL      string `json:"llm_api_url"`
	LLMAPIKey      string `json:"llm_api_key"`
	LLMModel       string `json:"llm_model"`
	CronExpr       string `json:"cron_expr"`
	TargetLanguage string `json:"target_language"`
}

func (r settingsRequest) toRuntimeSettings() config.RuntimeSettings {
	return config.RuntimeSettings{
		LLMAPIURL:      r.LLMAPIURL,
		LLMAPIKey:      r.LLMAPIKey,
		LLMModel:       r.LLMModel,
		CronExpr:       r.CronExpr,
		TargetLanguage: r.TargetLanguage,
	}
}

type settingsResponse struct {
	LLMAPIURL      string `json:"llm_api_url"`
	LLMAPIKeySet   bool   `json:"llm_api_key_set"`
	LLMAPIKey      string `json:"llm_api_key"`
	LLMModel       string `json:"llm_model"`
	CronExpr       string `json:"cron_expr"`
	TargetLanguage string `json:"target_language"`
}

// redactSettings hides the API key; the UI only needs to know one is set.
func redactSettings(settings config.RuntimeSettings) settingsResponse {
	resp := settingsResponse{
		LLMAPIURL:      settings.LLMAPIURL,
		LLMModel:       settings.LLMModel,
		CronExpr:       settings.CronExpr,
		TargetLanguage: settings.TargetLanguage,
	}
	if settings.LLMAPIKey != "" {
		resp.LLMAPIKeySet = true
		resp.LLMAPIKey = redactedAPIKey
	}
	return resp
}
