package keyboard

import "testing"

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons(Chunk([]string{"Регистрация", " ", "Курс валют", "Советы"}, 2)...)
	if m == nil || !m.ResizeKeyboard {
		t.Fatalf("markup = %+v", m)
	}
	if len(m.ReplyKeyboard) != 2 || len(m.ReplyKeyboard[0]) != 1 || len(m.ReplyKeyboard[1]) != 2 {
		t.Fatalf("rows = %+v", m.ReplyKeyboard)
	}
	if m.ReplyKeyboard[1][0].Text != "Курс валют" {
		t.Fatalf("label = %q", m.ReplyKeyboard[1][0].Text)
	}
	if ReplyButtons([]string{""}) != nil {
		t.Fatal("empty keyboard should be nil")
	}
}
