package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Voice is one selectable speaker voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultVoices is offered when no provider is configured.
var DefaultVoices = []Voice{
	{ID: "male_1", Name: "Male 1"},
	{ID: "male_2", Name: "Male 2"},
	{ID: "female_1", Name: "Female 1"},
	{ID: "female_2", Name: "Female 2"},
}

// OpenAIStyleVoices is offered when synthesis is configured but no voice list
// endpoint answers.
var OpenAIStyleVoices = []Voice{
	{ID: "alloy", Name: "Alloy"},
	{ID: "echo", Name: "Echo"},
	{ID: "fable", Name: "Fable"},
	{ID: "onyx", Name: "Onyx"},
	{ID: "nova", Name: "Nova"},
	{ID: "shimmer", Name: "Shimmer"},
}

// ListVoices returns the provider's voices. The boolean reports whether the
// list reflects a configured provider rather than the offline defaults.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, bool) {
	if c.cfg.APIKey == "" || !c.Configured() && c.cfg.VoicesURL == "" {
		return cloneVoices(DefaultVoices), false
	}
	for _, endpoint := range c.voiceURLs() {
		voices, err := c.fetchVoices(ctx, endpoint)
		if err == nil && len(voices) > 0 {
			return voices, true
		}
	}
	if c.Configured() {
		return cloneVoices(OpenAIStyleVoices), true
	}
	return cloneVoices(DefaultVoices), false
}

func (c *Client) voiceURLs() []string {
	var urls []string
	if c.cfg.VoicesURL != "" {
		urls = append(urls, c.cfg.VoicesURL)
	}
	if c.cfg.URL != "" {
		urls = append(urls, c.cfg.URL+"/voices")
	}
	if c.cfg.FallbackURL != "" {
		urls = append(urls, c.cfg.FallbackURL+"/voices")
	}
	return urls
}

func (c *Client) fetchVoices(ctx context.Context, endpoint string) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return decodeVoices(raw)
}

// decodeVoices accepts a bare array or an object with a "voices" or "data"
// array. Entries may be strings or objects with id/voice_id and name.
func decodeVoices(raw json.RawMessage) ([]Voice, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		var wrapper struct {
			Voices []json.RawMessage `json:"voices"`
			Data   []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, err
		}
		entries = wrapper.Voices
		if len(entries) == 0 {
			entries = wrapper.Data
		}
	}

	voices := make([]Voice, 0, len(entries))
	for i, entry := range entries {
		var name string
		if err := json.Unmarshal(entry, &name); err == nil {
			if name = strings.TrimSpace(name); name != "" {
				voices = append(voices, Voice{ID: name, Name: name})
			}
			continue
		}
		var obj struct {
			ID      string `json:"id"`
			VoiceID string `json:"voice_id"`
			Name    string `json:"name"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil {
			continue
		}
		id := strings.TrimSpace(obj.ID)
		if id == "" {
			id = strings.TrimSpace(obj.VoiceID)
		}
		if id == "" {
			id = fmt.Sprintf("voice_%d", i)
		}
		label := strings.TrimSpace(obj.Name)
		if label == "" {
			label = id
		}
		voices = append(voices, Voice{ID: id, Name: label})
	}
	return voices, nil
}

func cloneVoices(in []Voice) []Voice {
	return append([]Voice(nil), in...)
}
