// Package i18n は通知メールと応答メッセージの翻訳を提供する。
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
)

//go:embed translations/*.json
var translationsFS embed.FS

// サポートする言語。先頭がフォールバック先になる。
var supported = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(supported)

// Translator は選択された言語の翻訳テーブルを保持する。作成後は読み取り専用。
type Translator struct {
	tag   language.Tag
	table map[string]string
}

// New はlangに最も近いサポート言語のTranslatorを生成する。
// 解析できない、またはサポート外の言語は英語にフォールバックする。
func New(lang string) (*Translator, error) {
	_, index := language.MatchStrings(matcher, lang)
	tag := supported[index]

	base, _ := tag.Base()
	data, err := translationsFS.ReadFile("translations/" + base.String() + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read translations for %s: %w", tag, err)
	}

	table := make(map[string]string)
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse translations for %s: %w", tag, err)
	}

	return &Translator{tag: tag, table: table}, nil
}

// Translate はkeyの翻訳を返す。未定義のkeyはそのまま返す。
func (t *Translator) Translate(key string) string {
	if v, ok := t.table[key]; ok {
		return v
	}
	return key
}

// Language は選択された言語タグを返す。
func (t *Translator) Language() string {
	return t.tag.String()
}
