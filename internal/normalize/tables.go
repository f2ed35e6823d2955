package normalize

import "github.com/dgnsrekt/dictation-buddy/internal/dtypes"

// Table maps a punctuation character to the word read aloud for it.
type Table map[rune]string

var englishTable = Table{
	'.':  "period",
	',':  "comma",
	'?':  "question mark",
	'!':  "exclamation mark",
	';':  "semi-colon",
	':':  "colon",
	'"':  "quote",
	'“':  "quote",
	'”':  "quote",
	'\'': "apostrophe",
	'’':  "apostrophe",
	'-':  "hyphen",
	'(':  "open bracket",
	')':  "close bracket",
}

// Worksheets mix full-width and ASCII punctuation, so both forms are read.
var traditionalChineseTable = Table{
	'，': "逗號",
	',':  "逗號",
	'。': "句號",
	'.':  "句號",
	'？': "問號",
	'?':  "問號",
	'！': "驚嘆號",
	'!':  "驚嘆號",
	'、': "頓號",
	'；': "分號",
	';':  "分號",
	'：': "冒號",
	':':  "冒號",
	'「': "上引號",
	'」': "下引號",
	'『': "上雙引號",
	'』': "下雙引號",
	'（': "左括號",
	'(':  "左括號",
	'）': "右括號",
	')':  "右括號",
	'—': "破折號",
	'…': "刪節號",
}

func builtinTables() map[dtypes.Lang]Table {
	return map[dtypes.Lang]Table{
		dtypes.LangEnglish:            englishTable,
		dtypes.LangTraditionalChinese: traditionalChineseTable,
	}
}
