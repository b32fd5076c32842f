package telegram

import (
	"context"
	"testing"

	"github.com/m3rciful/financebot/core/dispatch"

	tele "gopkg.in/telebot.v4"
)

func TestMenuFromRegistry(t *testing.T) {
	noop := func(context.Context, dispatch.Event) (string, error) { return "", nil }
	reg := dispatch.NewRegistry()
	if err := reg.Register(
		dispatch.Command{Name: "start", Description: "greeting", Handler: noop},
		dispatch.Command{Name: "tips", Description: "tips", Handler: noop, Aliases: []string{"Советы по экономии"}},
		dispatch.Command{Name: "reset", Description: "reset", Handler: noop, AdminOnly: true},
	); err != nil {
		t.Fatalf("register: %v", err)
	}

	cmds := MenuCommands(reg)
	if len(cmds) != 2 || cmds[0].Text != "start" || cmds[1].Text != "tips" {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "Webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://x"}})
	wh, ok := p.(*tele.Webhook)
	if !ok || wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://x" {
		t.Fatalf("webhook poller = %#v", p)
	}
	lp, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	if !ok || lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("long poller = %#v", lp)
	}
}
