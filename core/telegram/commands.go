package telegram

import (
	"github.com/m3rciful/financebot/core/dispatch"

	tele "gopkg.in/telebot.v4"
)

// MenuCommands converts the visible registry entries into the Telegram command menu.
func MenuCommands(reg *dispatch.Registry) []tele.Command {
	if reg == nil {
		return nil
	}
	list := reg.List(true)
	out := make([]tele.Command, 0, len(list))
	for _, cmd := range list {
		out = append(out, tele.Command{Text: cmd.Name, Description: cmd.Description})
	}
	return out
}
