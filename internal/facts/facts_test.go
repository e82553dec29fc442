package facts

import (
	"reflect"
	"testing"
)

func TestExtractNamesAndDates(t *testing.T) {
	got := Extract("Hola, soy Ana, nos vemos mañana")
	want := map[string][]string{
		KeyNames: {"Ana", "Hola"},
		KeyDates: {"mañana"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract: got %v want %v", got, want)
	}
}

func TestExtractNumericDates(t *testing.T) {
	got := Extract("la cita es el 3/12/2025 o el 3/12/2025")
	if !reflect.DeepEqual(got[KeyDates], []string{"3/12/2025"}) {
		t.Fatalf("expected deduplicated date, got %v", got[KeyDates])
	}
	if _, ok := got[KeyNames]; ok {
		t.Fatalf("expected no names, got %v", got[KeyNames])
	}
}

func TestExtractEmptyMapping(t *testing.T) {
	got := Extract("nada que ver por aquí")
	if len(got) != 0 {
		t.Fatalf("expected empty mapping, got %v", got)
	}
}

func TestExtractDeterministic(t *testing.T) {
	msg := "Pedro y Ana viajan hoy, Ana vuelve ayer 1/2/2034"
	first := Extract(msg)
	for i := 0; i < 50; i++ {
		if got := Extract(msg); !reflect.DeepEqual(got, first) {
			t.Fatalf("iteration %d differs: %v vs %v", i, got, first)
		}
	}
}
