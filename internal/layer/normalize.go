package layer

import (
	"encoding/json"
	"strconv"
	"strings"
)

// VideoFilter is the global colour filter, also stored per video and image
// layer.
type VideoFilter struct {
	Brightness  float64 `json:"brightness" yaml:"brightness"`   // 0-200
	Contrast    float64 `json:"contrast" yaml:"contrast"`       // 0-200
	Saturation  float64 `json:"saturation" yaml:"saturation"`   // 0-200
	Temperature float64 `json:"temperature" yaml:"temperature"` // -100..100
	Blur        float64 `json:"blur" yaml:"blur"`               // 0-20
	HueRotate   float64 `json:"hueRotate" yaml:"hueRotate"`     // 0-360
}

func DefaultFilter() VideoFilter {
	return VideoFilter{Brightness: 100, Contrast: 100, Saturation: 100}
}

func (f *VideoFilter) Clone() *VideoFilter {
	if f == nil {
		return nil
	}
	out := *f
	return &out
}

type partialFilter struct {
	Brightness  *float64 `json:"brightness"`
	Contrast    *float64 `json:"contrast"`
	Saturation  *float64 `json:"saturation"`
	Temperature *float64 `json:"temperature"`
	Warmth      *float64 `json:"warmth"`
	Blur        *float64 `json:"blur"`
	HueRotate   *float64 `json:"hueRotate"`
}

// NormalizeFilter decodes a possibly partial or legacy filter object. It
// never fails: anything it cannot read falls back to the default value.
// The legacy "warmth" key is read as temperature.
func NormalizeFilter(raw json.RawMessage) VideoFilter {
	out := DefaultFilter()
	if len(raw) == 0 {
		return out
	}
	var p partialFilter
	if err := json.Unmarshal(raw, &p); err != nil {
		return out
	}
	pick := func(dst *float64, vals ...*float64) {
		for _, v := range vals {
			if v != nil {
				*dst = *v
				return
			}
		}
	}
	pick(&out.Brightness, p.Brightness)
	pick(&out.Contrast, p.Contrast)
	pick(&out.Saturation, p.Saturation)
	pick(&out.Temperature, p.Temperature, p.Warmth)
	pick(&out.Blur, p.Blur)
	pick(&out.HueRotate, p.HueRotate)
	return out
}

type TextShadow struct {
	Color   string  `json:"color" yaml:"color"`
	Blur    float64 `json:"blur" yaml:"blur"`
	OffsetX float64 `json:"offsetX" yaml:"offsetX"`
	OffsetY float64 `json:"offsetY" yaml:"offsetY"`
}

type TextOutline struct {
	Color string  `json:"color" yaml:"color"`
	Width float64 `json:"width" yaml:"width"`
}

type TextStyle struct {
	FontFamily      string       `json:"fontFamily" yaml:"fontFamily"`
	FontSize        float64      `json:"fontSize" yaml:"fontSize"`
	Color           string       `json:"color" yaml:"color"`
	BackgroundColor string       `json:"backgroundColor,omitempty" yaml:"backgroundColor"`
	FontWeight      int          `json:"fontWeight" yaml:"fontWeight"`
	FontStyle       string       `json:"fontStyle" yaml:"fontStyle"`
	TextAlign       string       `json:"textAlign" yaml:"textAlign"`
	TextTransform   string       `json:"textTransform" yaml:"textTransform"`
	LineHeight      float64      `json:"lineHeight" yaml:"lineHeight"`
	LetterSpacing   float64      `json:"letterSpacing" yaml:"letterSpacing"`
	TextDecoration  string       `json:"textDecoration,omitempty" yaml:"textDecoration"`
	Shadow          *TextShadow  `json:"shadow,omitempty" yaml:"shadow"`
	Outline         *TextOutline `json:"outline,omitempty" yaml:"outline"`
}

const (
	FontWeightNormal = 400
	FontWeightBold   = 700
)

func DefaultTextStyle() TextStyle {
	return TextStyle{
		FontFamily:    "Inter",
		FontSize:      32,
		Color:         "#ffffff",
		FontWeight:    FontWeightBold,
		FontStyle:     "normal",
		TextAlign:     "center",
		TextTransform: "none",
		LineHeight:    1.2,
	}
}

// Complete fills every unset field from DefaultTextStyle, so partial
// styles from callers, templates and patches encode the same way they load.
func (s TextStyle) Complete() TextStyle {
	d := DefaultTextStyle()
	if s.FontFamily == "" {
		s.FontFamily = d.FontFamily
	}
	if s.FontSize <= 0 {
		s.FontSize = d.FontSize
	}
	if s.Color == "" {
		s.Color = d.Color
	}
	if s.FontWeight <= 0 {
		s.FontWeight = d.FontWeight
	}
	if s.FontStyle == "" {
		s.FontStyle = d.FontStyle
	}
	if s.TextAlign == "" {
		s.TextAlign = d.TextAlign
	}
	if s.TextTransform == "" {
		s.TextTransform = d.TextTransform
	}
	if s.LineHeight <= 0 {
		s.LineHeight = d.LineHeight
	}
	return s
}

func (s TextStyle) Clone() TextStyle {
	if s.Shadow != nil {
		sh := *s.Shadow
		s.Shadow = &sh
	}
	if s.Outline != nil {
		o := *s.Outline
		s.Outline = &o
	}
	return s
}

type wireTextStyle struct {
	TextStyle
	FontWeight json.RawMessage `json:"fontWeight,omitempty"`
}

// NormalizeTextStyle overlays a stored style onto the defaults. fontWeight
// may be a number or one of the legacy strings "bold"/"normal".
func NormalizeTextStyle(raw json.RawMessage) TextStyle {
	if len(raw) == 0 {
		return DefaultTextStyle()
	}
	w := wireTextStyle{TextStyle: DefaultTextStyle()}
	if err := json.Unmarshal(raw, &w); err != nil {
		return DefaultTextStyle()
	}
	out := w.TextStyle
	out.FontWeight = parseFontWeight(w.FontWeight)
	return out.Complete()
}

func parseFontWeight(raw json.RawMessage) int {
	if len(raw) == 0 {
		return FontWeightBold
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return FontWeightBold
		}
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return FontWeightBold
	}
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "bold" {
		return FontWeightBold
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return FontWeightNormal
}

// NormalizeEffects decodes stored audio effects. A missing object stays
// nil so that tracks without effects round-trip without gaining them.
func NormalizeEffects(raw json.RawMessage) *AudioEffects {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	e := DefaultAudioEffects()
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil
	}
	return &e
}

// NormalizeAnimation decodes a stored text animation; nil when absent or
// unreadable.
func NormalizeAnimation(raw json.RawMessage) *TextAnimation {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var a TextAnimation
	if err := json.Unmarshal(raw, &a); err != nil || a.Type == "" {
		return nil
	}
	return &a
}
