package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// ReportDefinition describes what a weekly report contains. Text fields may
// use the placeholders {week_start}, {week_end}, {prev_week_start},
// {prev_week_end}, {week_start_iso}, {week_end_iso} and {symbols}.
type ReportDefinition struct {
	Title    string              `toml:"title" validate:"required"`
	Symbols  []string            `toml:"symbols" validate:"required,min=1,dive,required"`
	Indices  []string            `toml:"indices" validate:"dive,required"`
	System   string              `toml:"system"`
	Format   DateFormat          `toml:"format"`
	Messages MessageTemplates    `toml:"messages"`
	Sections []SectionDefinition `toml:"sections" validate:"required,min=1,unique=Name,dive"`
}

// DateFormat holds Go layouts for display dates.
type DateFormat struct {
	Long  string `toml:"long"`
	Short string `toml:"short"`
}

// MessageTemplates overrides the chat message decoration.
type MessageTemplates struct {
	Header       string `toml:"header"`
	Continuation string `toml:"continuation"`
}

// SectionDefinition is one independently generated part of the report.
type SectionDefinition struct {
	Name   string `toml:"name" validate:"required"`
	Title  string `toml:"title" validate:"required"`
	Prompt string `toml:"prompt" validate:"required"`
	// News adds the per-symbol news context to this section's prompt.
	News bool `toml:"news"`
}

// LoadReport reads a TOML report definition.
func LoadReport(path string) (*ReportDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	return ParseReport(data)
}

// ParseReport decodes a TOML report definition. Unset fields take the
// values of DefaultReport, except sections which replace the defaults as a
// whole.
func ParseReport(data []byte) (*ReportDefinition, error) {
	def := DefaultReport()
	def.Sections = nil

	if err := toml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	if len(def.Sections) == 0 {
		def.Sections = DefaultReport().Sections
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Validate checks the definition.
func (d *ReportDefinition) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return fmt.Errorf("invalid report definition: %w", err)
	}
	return nil
}

// DefaultReport returns the US stock weekly report.
func DefaultReport() *ReportDefinition {
	return &ReportDefinition{
		Title:   "週間米国株レポート ({week_start}〜)",
		Symbols: []string{"TSLA", "PLTR", "SOFI", "CELH"},
		Indices: []string{"GSPC.INDX", "DJI.INDX", "IXIC.INDX", "RUT.INDX", "VIX.INDX"},
		System: "私は米国株投資家で、主要投資対象は{symbols}です。" +
			"{week_label}（{week_start}から{week_end}）とその{prev_week_label}（{prev_week_start}から{prev_week_end}）の" +
			"NYSEとNASDAQの相場状況、金融環境をチェックしてください。" +
			"{prev_week_label}との比較を交え、データを簡潔にまとめ、簡単な見解を加えて報告してください。" +
			"提供された市場データがある場合はそれを優先し、取得失敗の項目は推測で埋めないでください。",
		Format: DateFormat{
			Long:  "2006年01月02日",
			Short: "01月02日",
		},
		Sections: []SectionDefinition{
			{
				Name:   "market",
				Title:  "市場全体のパフォーマンスとトレンド",
				Prompt: "主要指数の週次変化（S&P 500, DJIA, NASDAQ Composite, Russell 2000のリターン率と終値変動）とセクター別パフォーマンスをまとめてください。",
			},
			{
				Name:   "technical",
				Title:  "テクニカル指標と市場の健康度",
				Prompt: "ヒンデンブルグオーメン、ディストリビューションデイ、VIXの変化をまとめてください。",
			},
			{
				Name:   "macro",
				Title:  "金融政策とマクロ環境",
				Prompt: "FRB金融政策予想、10年物米国債利回り、米ドル指数DXYの変化をまとめてください。",
			},
			{
				Name:   "watchlist",
				Title:  "主要投資対象銘柄の週次まとめ",
				Prompt: "{symbols}の各銘柄について、株価変化、関連ニュース、前々週比の勢い変化をまとめ、最後に全体の見解として{symbols}への投資戦略への示唆を述べてください。",
				News:   true,
			},
		},
	}
}
