package settingsstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/voicediary/internal/entities"
)

// Tone selects the writing style of generated entries.
type Tone string

const (
	ToneSimple     Tone = "simple"
	ToneCasual     Tone = "casual"
	ToneReflective Tone = "reflective"

	DefaultTone = ToneSimple
)

// Language selects the language generated entries are written in.
type Language string

const (
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"

	DefaultLanguage = LanguageJapanese
)

var (
	ErrInvalidTone     = errors.New("invalid diary tone")
	ErrInvalidLanguage = errors.New("invalid diary language")
)

// Tones lists the supported tones in display order.
var Tones = []Tone{ToneSimple, ToneCasual, ToneReflective}

// Languages lists the supported output languages.
var Languages = []Language{LanguageJapanese, LanguageEnglish}

// Valid reports whether t is a supported tone.
func (t Tone) Valid() bool {
	switch t {
	case ToneSimple, ToneCasual, ToneReflective:
		return true
	}
	return false
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageJapanese || l == LanguageEnglish
}

// Name is the English name of the language, as used in prompts.
func (l Language) Name() string {
	if l == LanguageEnglish {
		return "English"
	}
	return "Japanese"
}

// Preferences is the effective diary configuration.
type Preferences struct {
	Tone           Tone     `json:"tone"`
	ToneSource     Source   `json:"tone_source"`
	Language       Language `json:"language"`
	LanguageSource Source   `json:"language_source"`
}

// Tone returns the diary tone (database > DIARY_TONE > simple).
// Unknown stored values fall back to the default.
func (s *SettingsStore) Tone(ctx context.Context) Tone {
	tone, _ := s.tone(ctx)
	return tone
}

// ToneSource returns where Tone came from.
func (s *SettingsStore) ToneSource(ctx context.Context) Source {
	_, source := s.tone(ctx)
	return source
}

func (s *SettingsStore) tone(ctx context.Context) (Tone, Source) {
	value, source := s.lookup(ctx, entities.SettingKeyDiaryTone, "DIARY_TONE")
	if tone := Tone(value); tone.Valid() {
		return tone, source
	}
	return DefaultTone, SourceDefault
}

// SetTone stores the tone override.
func (s *SettingsStore) SetTone(ctx context.Context, tone Tone) error {
	if !tone.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTone, tone)
	}
	return s.repo.SetSetting(ctx, entities.SettingKeyDiaryTone, string(tone))
}

// Language returns the diary language (database > DIARY_LANGUAGE > ja).
func (s *SettingsStore) Language(ctx context.Context) Language {
	language, _ := s.language(ctx)
	return language
}

// LanguageSource returns where Language came from.
func (s *SettingsStore) LanguageSource(ctx context.Context) Source {
	_, source := s.language(ctx)
	return source
}

func (s *SettingsStore) language(ctx context.Context) (Language, Source) {
	value, source := s.lookup(ctx, entities.SettingKeyDiaryLanguage, "DIARY_LANGUAGE")
	if language := Language(value); language.Valid() {
		return language, source
	}
	return DefaultLanguage, SourceDefault
}

// SetLanguage stores the language override.
func (s *SettingsStore) SetLanguage(ctx context.Context, language Language) error {
	if !language.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, language)
	}
	return s.repo.SetSetting(ctx, entities.SettingKeyDiaryLanguage, string(language))
}

// DiaryPreferences returns a snapshot of the effective tone and language.
func (s *SettingsStore) DiaryPreferences(ctx context.Context) Preferences {
	tone, toneSource := s.tone(ctx)
	language, languageSource := s.language(ctx)
	return Preferences{
		Tone:           tone,
		ToneSource:     toneSource,
		Language:       language,
		LanguageSource: languageSource,
	}
}

// ClearDiaryPreferences drops the database overrides for tone and language.
func (s *SettingsStore) ClearDiaryPreferences(ctx context.Context) error {
	for _, key := range []string{entities.SettingKeyDiaryTone, entities.SettingKeyDiaryLanguage} {
		if err := s.repo.DeleteSetting(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

var tonePrompts = map[Tone]string{
	ToneSimple: `- Summarize what was said in a straightforward, factual manner
- Use plain, natural language without literary embellishment
- Focus on the actual events and facts mentioned
- Keep it simple and easy to understand
- Do not add poetic expressions or metaphors
- Write as if taking notes of what happened`,
	ToneCasual: `- Write in casual, relaxed language
- Use natural everyday wording
- Include personal opinions freely
- Keep it light and easy to read`,
	ToneReflective: `- Write in a mature, reflective tone
- Use polite but natural language
- Include thoughtful observations and personal reflections
- Keep it sincere and genuine, like a personal journal
- The tone should be calm, composed, and introspective`,
}

// TonePrompt returns the style guidelines for tone. Unknown tones get the
// default tone's guidelines.
func TonePrompt(tone Tone) string {
	if prompt, ok := tonePrompts[tone]; ok {
		return prompt
	}
	return tonePrompts[DefaultTone]
}
