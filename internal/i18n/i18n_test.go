package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Stoa" {
		t.Errorf("T(AppTitle) = %q, want 'Stoa'", got)
	}

	got = T(ctx, "NotEnoughRounds")
	if got == "NotEnoughRounds" {
		t.Error("NotEnoughRounds not translated")
	}
}

func TestTranslateChinese(t *testing.T) {
	ctx := initLang(t, "zh")

	got := T(ctx, "LoginFailed")
	if got != "用户名或密码错误。" {
		t.Errorf("T(LoginFailed) = %q", got)
	}

	got = T(ctx, "AwaitingChoice")
	if got != "请选择：再来一题，或进入下一层级。" {
		t.Errorf("T(AwaitingChoice) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "RoundsDone", 1)
	if got1 != "You have completed 1 learning round." {
		t.Errorf("Tp(RoundsDone, 1) = %q", got1)
	}

	got5 := Tp(ctx, "RoundsDone", 5)
	if got5 != "You have completed 5 learning rounds." {
		t.Errorf("Tp(RoundsDone, 5) = %q", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "LevelReached", map[string]any{"Level": "Apply"})
	if got != "You are now at the Apply level." {
		t.Errorf("Td(LevelReached) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
