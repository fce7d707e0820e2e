package engine

import (
	"fmt"
	"time"
)

// Message locales
const (
	LocaleEnglish    = "en"
	LocaleVietnamese = "vi"
)

type messages struct {
	cooldown    func(remaining time.Duration) string
	notNeeded   string
	tooSmall    string
	waterNeeded string
}

var catalog = map[string]messages{
	LocaleEnglish: {
		cooldown: func(left time.Duration) string {
			return fmt.Sprintf("Cooldown in effect. %ds remaining.", int(left.Seconds()))
		},
		notNeeded:   "Model predicts the plant does not need water.",
		tooSmall:    "Predicted amount too small, skipped.",
		waterNeeded: "Plant needs water.",
	},
	LocaleVietnamese: {
		cooldown: func(left time.Duration) string {
			return fmt.Sprintf("Đang trong thời gian nghỉ (Cooldown). Còn %ds nữa.", int(left.Seconds()))
		},
		notNeeded:   "Model dự đoán cây chưa cần nước.",
		tooSmall:    "Lượng nước dự đoán quá nhỏ, bỏ qua.",
		waterNeeded: "Cây cần nước.",
	},
}

// SupportedLocale reports whether reasons can be rendered in locale
func SupportedLocale(locale string) bool {
	_, ok := catalog[locale]
	return ok
}

func messagesFor(locale string) messages {
	if m, ok := catalog[locale]; ok {
		return m
	}
	return catalog[LocaleEnglish]
}
