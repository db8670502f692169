package telegram

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"drinkup/internal/app"
	"drinkup/internal/intake"
	"drinkup/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const progressBarWidth = 10

// parseAmount reads a /drink argument. "250ml" and "0.25l" are explicit;
// a bare number of 10 or more is taken as milliliters, anything smaller as
// liters. An empty argument is one default serving.
func parseAmount(arg string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(arg))
	if s == "" {
		return intake.DefaultServing, nil
	}
	s = strings.ReplaceAll(s, ",", ".")

	unit := ""
	switch {
	case strings.HasSuffix(s, "ml"):
		unit, s = "ml", strings.TrimSuffix(s, "ml")
	case strings.HasSuffix(s, "l"):
		unit, s = "l", strings.TrimSuffix(s, "l")
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid amount %q", arg)
	}

	if unit == "ml" || (unit == "" && v >= 10) {
		v /= 1000
	}
	return v, nil
}

func progressBar(ratio float64) string {
	filled := int(ratio*progressBarWidth + 0.5)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", progressBarWidth-filled)
}

func formatStatus(s app.Status) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💧 *%s*, today's goal: %.1f L\n\n", escape(s.Profile.Name), s.Goal))
	sb.WriteString(fmt.Sprintf("%s %d%%\n", progressBar(s.Ratio), s.Percent()))
	sb.WriteString(fmt.Sprintf("%.2f L drunk", s.Today.TotalLiters()))
	if s.Phase == intake.GoalMet {
		sb.WriteString(" ✅")
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatLog(s intake.DailyState) string {
	var sb strings.Builder
	sb.WriteString("📜 *Today's log*\n\n")
	if len(s.Events) == 0 {
		sb.WriteString("_You haven't had any water today yet._\n")
		return sb.String()
	}
	for _, e := range s.Events {
		sb.WriteString(fmt.Sprintf("• %s - %.2f L\n", e.At.Format("15:04"), e.Liters))
	}
	sb.WriteString(fmt.Sprintf("\n*Total:* %.2f L\n", s.TotalLiters()))
	return sb.String()
}

func formatUsage(usage []metrics.DailyUsage) string {
	var sb strings.Builder
	sb.WriteString("📊 *Reminder wording, last 7 days*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d calls, %d fallbacks, %dms avg\n", d.Date, d.TotalExecution, d.Fallbacks, d.AvgLatencyMS))
	}
	return sb.String()
}

func formatHealth(h metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", h.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", h.DataDiskSize))
	return sb.String()
}

func drinkKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🥛 200ml", "drink|200ml"),
			tgbotapi.NewInlineKeyboardButtonData("🥤 330ml", "drink|330ml"),
			tgbotapi.NewInlineKeyboardButtonData("🍶 500ml", "drink|500ml"),
		),
	)
}

func genderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("♂️ Male", "onboard|male"),
			tgbotapi.NewInlineKeyboardButtonData("♀️ Female", "onboard|female"),
		),
	)
}

func sportKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", "onboard|yes"),
			tgbotapi.NewInlineKeyboardButtonData("No", "onboard|no"),
		),
	)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
