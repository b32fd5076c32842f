package domain

import "testing"

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"text":    KindText,
		" Number": KindNumber,
		"":        KindText,
		"float":   KindNumber,
	}
	for raw, want := range cases {
		got, err := ParseKind(raw)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseKind("date"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAnswersGetAndClone(t *testing.T) {
	a := Answers{
		{Step: "category1", Value: TextValue("Food")},
		{Step: "expenses1", Value: NumberValue(120.5)},
	}
	v, ok := a.Get("expenses1")
	if !ok || v.Number != 120.5 {
		t.Fatalf("Get(expenses1) = %+v, %v", v, ok)
	}
	if _, ok := a.Get("missing"); ok {
		t.Fatal("expected missing step to be absent")
	}

	c := a.Clone()
	c[0].Value = TextValue("Rent")
	if a[0].Value.Text != "Food" {
		t.Fatalf("clone aliases original: %+v", a[0])
	}
	if got := NumberValue(40).String(); got != "40" {
		t.Fatalf("NumberValue(40).String() = %q", got)
	}
}
