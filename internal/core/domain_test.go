package core

import "testing"

func TestCategoryZeroValueIsAbsent(t *testing.T) {
	var absent Category
	if absent.Valid {
		t.Fatal("zero category should be absent")
	}
	if absent == NewCategory("") {
		t.Fatal("absent category must differ from the empty label")
	}
	if absent.String() != "" {
		t.Fatalf("absent category should render empty, got %q", absent.String())
	}
	if got := NewCategory("food").String(); got != "food" {
		t.Fatalf("expected food, got %q", got)
	}
}

func TestNewTransactionCurrencyOrDefault(t *testing.T) {
	if got := (NewTransaction{}).CurrencyOrDefault(); got != DefaultCurrency {
		t.Fatalf("expected %s, got %s", DefaultCurrency, got)
	}
	if got := (NewTransaction{Currency: "USD"}).CurrencyOrDefault(); got != "USD" {
		t.Fatalf("expected USD, got %s", got)
	}
}
