package engines

import (
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
)

// Neural voices offered for each supported language. Mandarin voices are
// listed for Traditional Chinese because they read Traditional characters.
var neuralVoices = map[dtypes.Lang][]synth.Voice{
	dtypes.LangEnglish: {
		{ID: "en-US-AriaNeural", Lang: dtypes.LangEnglish, Name: "Aria (US)", Gender: "female"},
		{ID: "en-US-GuyNeural", Lang: dtypes.LangEnglish, Name: "Guy (US)", Gender: "male"},
		{ID: "en-GB-SoniaNeural", Lang: dtypes.LangEnglish, Name: "Sonia (UK)", Gender: "female"},
	},
	dtypes.LangTraditionalChinese: {
		{ID: "zh-TW-HsiaoChenNeural", Lang: dtypes.LangTraditionalChinese, Name: "曉臻 HsiaoChen", Gender: "female"},
		{ID: "zh-TW-HsiaoYuNeural", Lang: dtypes.LangTraditionalChinese, Name: "曉雨 HsiaoYu", Gender: "female"},
		{ID: "zh-TW-YunJheNeural", Lang: dtypes.LangTraditionalChinese, Name: "雲哲 YunJhe", Gender: "male"},
		{ID: "zh-CN-XiaoxiaoNeural", Lang: dtypes.LangTraditionalChinese, Name: "晓晓 Xiaoxiao (Mandarin)", Gender: "female"},
	},
}

// Tencent Cloud voice types. IDs are the numeric VoiceType as a string.
var tencentVoices = map[dtypes.Lang][]synth.Voice{
	dtypes.LangEnglish: {
		{ID: "1050", Lang: dtypes.LangEnglish, Name: "WeJack", Gender: "male"},
		{ID: "1051", Lang: dtypes.LangEnglish, Name: "WeRose", Gender: "female"},
	},
	dtypes.LangTraditionalChinese: {
		{ID: "101001", Lang: dtypes.LangTraditionalChinese, Name: "智瑜 Zhiyu", Gender: "female"},
		{ID: "101008", Lang: dtypes.LangTraditionalChinese, Name: "智琪 Zhiqi", Gender: "female"},
		{ID: "101004", Lang: dtypes.LangTraditionalChinese, Name: "智云 Zhiyun", Gender: "male"},
	},
}

// DefaultVoice returns the first catalog voice for lang, or "" when the
// language has none.
func DefaultVoice(engine string, lang dtypes.Lang) string {
	catalog := neuralVoices
	if engine == NameTencent {
		catalog = tencentVoices
	}
	if v := catalog[lang]; len(v) > 0 {
		return v[0].ID
	}
	return ""
}

// Catalog returns the built-in voices engine offers for lang without
// creating the engine.
func Catalog(engine string, lang dtypes.Lang) []synth.Voice {
	switch engine {
	case NameTencent:
		return voicesFor(tencentVoices, lang)
	case NameMock:
		return (&Mock{}).Voices(lang)
	default:
		return voicesFor(neuralVoices, lang)
	}
}

func voicesFor(catalog map[dtypes.Lang][]synth.Voice, lang dtypes.Lang) []synth.Voice {
	return append([]synth.Voice(nil), catalog[lang]...)
}
